//go:build integration

package testutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NginxEnv is an nginx container serving static test files.
type NginxEnv struct {
	Container testcontainers.Container
	BaseURL   string
}

// URLFor returns the URL of the named file.
func (e *NginxEnv) URLFor(name string) string {
	return e.BaseURL + "/" + name
}

// Close terminates the nginx container.
func (e *NginxEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// StartNginxContainer starts nginx with files copied into its document root.
// nginx answers HEAD with Content-Length and serves single byte ranges, which
// is what a real mirror does.
func StartNginxContainer(t *testing.T, ctx context.Context, files ...TestFile) *NginxEnv {
	t.Helper()

	dir := t.TempDir()
	var containerFiles []testcontainers.ContainerFile
	for _, f := range files {
		hostPath := filepath.Join(dir, f.Name)
		if err := os.WriteFile(hostPath, f.Data, 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", f.Name, err)
		}
		containerFiles = append(containerFiles, testcontainers.ContainerFile{
			HostFilePath:      hostPath,
			ContainerFilePath: "/usr/share/nginx/html/" + f.Name,
			FileMode:          0o644,
		})
	}

	req := testcontainers.ContainerRequest{
		Image:        "nginx:alpine",
		ExposedPorts: []string{"80/tcp"},
		Files:        containerFiles,
		WaitingFor:   wait.ForHTTP("/").WithPort("80/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start nginx container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "80")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	return &NginxEnv{
		Container: container,
		BaseURL:   fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
}
