package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/wfhammer/persistence"
)

const PING_TIMEOUT = 3 * time.Second

// Config addresses a single node, sentinel or cluster deployment. Every key written is prefixed
// with Namespace.
type Config struct {
	Addrs     []string
	Password  string
	DB        int
	Namespace string
}

type baseDao struct {
	redisClient rd.UniversalClient
	namespace   string
}

func newBaseDao(conf Config) *baseDao {
	return &baseDao{
		redisClient: rd.NewUniversalClient(&rd.UniversalOptions{
			Addrs:    conf.Addrs,
			Password: conf.Password,
			DB:       conf.DB,
		}),
		namespace: conf.Namespace,
	}
}

func (bs *baseDao) getNamespaceKey(args ...string) string {
	return bs.namespace + ":" + strings.Join(args, ":")
}

// Ping reports an unreachable server as a StorageLayerError.
func (bs *baseDao) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, PING_TIMEOUT)
	defer cancel()
	if err := bs.redisClient.Ping(ctx).Err(); err != nil {
		return persistence.StorageLayerError{Message: fmt.Sprintf("redis unreachable: %v", err)}
	}
	return nil
}

func (bs *baseDao) Close() error {
	return bs.redisClient.Close()
}
