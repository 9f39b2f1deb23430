package db

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	db        *sqlx.DB
	getDbOnce sync.Once

	startPostgresOnce sync.Once
	startRedisOnce    sync.Once
	redisAddr         string
)

// GetDb connects to POSTGRES_URL once per test binary and initializes the schema.
func GetDb(t *testing.T) *sqlx.DB {
	getDbOnce.Do(func() {
		var err error
		db, err = sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
		require.NoError(t, err)

		err = InitializeDatabaseSchema(db)
		require.NoError(t, err)
	})
	return db
}

func StartPostgresContainer() (testcontainers.Container, string) {
	ctx := context.Background()
	dbName := "db"
	dbUser := "user"
	dbPassword := "password"

	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	if err != nil {
		panic(err)
	}

	return postgresContainer, connStr
}

// StartRedisContainer returns the container and its host:port address.
func StartRedisContainer() (testcontainers.Container, string) {
	ctx := context.Background()
	redisContainer, err := redis.RunContainer(ctx,
		testcontainers.WithImage("docker.io/redis:7"),
		redis.WithSnapshotting(10, 1),
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		panic(err)
	}

	uri, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		panic(err)
	}

	return redisContainer, strings.Replace(uri, "redis://", "", 1)
}

// SetupPostgres connects to POSTGRES_URL, starting a container for the whole test binary
// when it is not set. Containers are removed by the testcontainers reaper on exit.
func SetupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	startPostgresOnce.Do(func() {
		if os.Getenv("POSTGRES_URL") != "" {
			return
		}
		_, url := StartPostgresContainer()
		os.Setenv("POSTGRES_URL", url)
	})

	return GetDb(t)
}

// SetupRedis returns REDIS_ADDR or the address of a container shared by the test binary.
func SetupRedis(t *testing.T) string {
	t.Helper()

	startRedisOnce.Do(func() {
		redisAddr = os.Getenv("REDIS_ADDR")
		if redisAddr != "" {
			return
		}
		_, redisAddr = StartRedisContainer()
	})

	return redisAddr
}
