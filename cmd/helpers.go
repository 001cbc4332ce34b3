package cmd

import (
	"context"
	"strings"

	"bulkctl/cli/internal/bulk"
	"bulkctl/cli/internal/config"
	"bulkctl/cli/internal/distlock"
	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/httperrors"
	"bulkctl/cli/internal/keychain"
	"bulkctl/cli/internal/session"
	"bulkctl/cli/internal/transport"
	"bulkctl/cli/internal/versions"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// sessionStore returns the keychain as a session store, or nil when no
// secure storage is available. A nil store limits sessions to the environment.
func sessionStore() session.Store {
	km, err := keychain.GetManager()
	if err != nil {
		logger.Debug("keychain unavailable", logger.Args("error", err))
		return nil
	}
	return km
}

func loadSession() (*session.Session, error) {
	return session.Load(sessionStore())
}

func newTransport() *transport.HTTP {
	return transport.New(transport.Config{
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.MaxRetries,
		RateLimit:  cfg.HTTP.RateLimit,
		RateBurst:  cfg.HTTP.RateBurst,
		UserAgent:  cfg.HTTP.UserAgent + "/" + Version,
		Logger:     logger,
	})
}

func versionService() *versions.Service {
	return versions.NewService(newTransport())
}

// backendFor builds the backend for api ("v1" or "v2"), resolving the
// configured API version against the instance when it is "latest".
func backendFor(ctx context.Context, api string, sess *session.Session) (bulk.JobBackend, error) {
	tr := newTransport()
	version, err := versions.NewService(tr).Resolve(ctx, sess, cfg.APIVersion)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(api) {
	case config.APIv1:
		return bulk.NewV1(bulk.V1Config{
			Session:           sess,
			Transport:         tr,
			APIVersion:        version,
			UploadConcurrency: cfg.UploadConcurrency,
		}), nil
	case config.APIv2:
		return bulk.NewV2(bulk.V2Config{
			Session:    sess,
			Transport:  tr,
			APIVersion: version,
		}), nil
	}
	return nil, errors.Newf(errors.Configuration, "api must be v1 or v2, got %q", api)
}

// lockFactory opens the configured lock backend. The returned close func
// releases any connection it opened.
func lockFactory(ctx context.Context) (distlock.Factory, func(), error) {
	switch cfg.Lock.Backend {
	case config.LockRedis:
		opts, err := redis.ParseURL(cfg.Lock.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(errors.Configuration, "lock.redis_url", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrap(errors.Transport, "connect to redis", err)
		}
		return distlock.Redis(client, cfg.Lock.TTL), func() { _ = client.Close() }, nil
	case config.LockPostgres:
		pool, err := openPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return distlock.Postgres(pool), pool.Close, nil
	}
	return distlock.Local(), func() {}, nil
}

// openPool connects to the database saved by `bulkctl connect`.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	km, err := keychain.GetManager()
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "secure storage is not available", err)
	}
	dsn, err := km.LoadDBDSN()
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "no database configured. Run `bulkctl connect`", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "invalid database DSN", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(errors.Transport, "connect to database", err)
	}
	return pool, nil
}

// newController wires a backend, the lock backend and an optional observer.
func newController(ctx context.Context, api string, sess *session.Session, observer bulk.Observer) (*bulk.Controller, func(), error) {
	backend, err := backendFor(ctx, api, sess)
	if err != nil {
		return nil, nil, explain(err, "resolving the API version", sess.InstanceURL())
	}
	locks, closeLocks, err := lockFactory(ctx)
	if err != nil {
		return nil, nil, err
	}
	c := bulk.NewController(backend,
		bulk.WithLogger(logger),
		bulk.WithJobLocks(locks),
		bulk.WithStatusObserver(observer),
	)
	return c, closeLocks, nil
}

// explain prints a network diagnosis for transport failures and returns err.
func explain(err error, context, target string) error {
	if errors.Is(err, errors.Transport) {
		return httperrors.FormatNetworkError(err, context, target)
	}
	return err
}
