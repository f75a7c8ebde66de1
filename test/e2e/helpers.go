//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

const (
	e2eAPIKey     = "e2e-test-api-key"
	e2eCronSecret = "e2e-test-cron-secret"
)

// prospectorServer manages a running prospector server process.
type prospectorServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	logFile string
}

// startProspector launches the binary and waits for it to become healthy.
// The server is configured entirely via environment variables.
func startProspector(t *testing.T, extraEnv ...string) *prospectorServer {
	t.Helper()

	if prospectorBin == "" {
		t.Skip("prospector binary not available (set PROSPECTOR_BIN or add to PATH)")
	}

	dataDir := t.TempDir()
	port := freePort(t)
	logFile := filepath.Join(dataDir, "prospector.log")

	cmd := exec.Command(prospectorBin)
	cmd.Dir = dataDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PROSPECTOR_PORT=%d", port),
		"PROSPECTOR_DB_DRIVER=sqlite",
		"PROSPECTOR_DB_PATH="+filepath.Join(dataDir, "prospector.db"),
		"PROSPECTOR_API_KEY="+e2eAPIKey,
		"PROSPECTOR_CRON_SECRET="+e2eCronSecret,
		"PROSPECTOR_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"),
		"PROSPECTOR_REDIS_URL=",
		"PROSPECTOR_AMQP_URL=",
		"PROSPECTOR_REPORT_BUCKET=",
		"OPENAI_API_KEY=",
	)
	cmd.Env = append(cmd.Env, extraEnv...)

	lf, err := os.Create(logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start prospector: %v", err)
	}

	s := &prospectorServer{
		cmd:     cmd,
		dataDir: dataDir,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		logFile: logFile,
	}

	t.Cleanup(func() {
		s.stop()
		lf.Close()
		if t.Failed() {
			if data, err := os.ReadFile(logFile); err == nil {
				t.Logf("server log:\n%s", data)
			}
		}
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("prospector not healthy: %v", err)
	}

	return s
}

func (s *prospectorServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil && s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *prospectorServer) baseURL() string {
	return fmt.Sprintf("http://%s", s.address)
}

func (s *prospectorServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := s.baseURL() + "/api/v1/health"

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("prospector not healthy after %s", timeout)
}

// do sends a request with the given bearer token and decodes a JSON reply
// into out when out is non-nil. It returns the status code.
func (s *prospectorServer) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.baseURL()+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
