package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
)

const RUN_KEY string = "RUN"

var _ persistence.RunStorage = new(redisRunDao)

// redisRunDao stores one key per run. Finished runs expire after the retention period.
type redisRunDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.WorkflowRun]
	retention      time.Duration
}

func NewRedisRunDao(conf Config, retention time.Duration, encoderDecoder util.EncoderDecoder[model.WorkflowRun]) *redisRunDao {
	return &redisRunDao{
		baseDao:        newBaseDao(conf),
		encoderDecoder: encoderDecoder,
		retention:      retention,
	}
}

func (rr *redisRunDao) SaveRun(run model.WorkflowRun) error {
	data, err := rr.encoderDecoder.Encode(run)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if run.Status != model.RUNNING && run.Status != model.PAUSED {
		ttl = rr.retention
	}
	key := rr.getNamespaceKey(RUN_KEY, run.Id)
	if err := rr.redisClient.Set(context.Background(), key, data, ttl).Err(); err != nil {
		logger.Error("error in saving run", zap.String("runId", run.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rr *redisRunDao) GetRun(id string) (*model.WorkflowRun, error) {
	key := rr.getNamespaceKey(RUN_KEY, id)
	val, err := rr.redisClient.Get(context.Background(), key).Result()
	if errors.Is(err, rd.Nil) {
		return nil, persistence.NotFoundError{Kind: "run", Name: id}
	}
	if err != nil {
		logger.Error("error in getting run", zap.String("runId", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rr.encoderDecoder.Decode([]byte(val))
}

func (rr *redisRunDao) DeleteRun(id string) error {
	key := rr.getNamespaceKey(RUN_KEY, id)
	if err := rr.redisClient.Del(context.Background(), key).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
