// Package postgrescontainer starts a disposable PostgreSQL server for
// integration tests.
package postgrescontainer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultImage = "postgres:16-alpine"
	user         = "scribe"
	password     = "secret"
	dbName       = "scribe_test"
)

var (
	once      sync.Once
	mu        sync.Mutex
	container testcontainers.Container
	dsn       string
	setupErr  error
)

// DSN returns a lib/pq formatted connection string for the running container.
func DSN() string {
	mu.Lock()
	defer mu.Unlock()
	return dsn
}

// Setup launches the Postgres container once per test binary. It returns
// an error when Docker is unavailable so callers can skip.
func Setup(ctx context.Context) error {
	once.Do(func() {
		setupErr = start(ctx)
	})
	return setupErr
}

func start(ctx context.Context) (err error) {
	defer func() {
		// the docker provider panics on some hosts without a daemon
		if r := recover(); r != nil {
			err = fmt.Errorf("postgres container: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        defaultImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": password,
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(60 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		_ = c.Terminate(ctx)
		return fmt.Errorf("failed to get container port: %w", err)
	}

	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port.Port(), dbName)
	if err := waitForPostgres(ctx, url, 10*time.Second); err != nil {
		_ = c.Terminate(ctx)
		return err
	}

	mu.Lock()
	container, dsn = c, url
	mu.Unlock()
	return nil
}

// Teardown stops the container launched by Setup.
func Teardown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if container == nil {
		return setupErr
	}
	err := container.Terminate(ctx)
	container = nil
	return err
}

func waitForPostgres(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := func() error {
			db, err := sql.Open("postgres", url)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.PingContext(pingCtx)
		}()
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("postgres container did not become ready in time")
}
