package redis

import (
	"context"
	"errors"
	"sort"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
)

const WORKFLOW_DEF string = "WORKFLOW"

var _ persistence.WorkflowStorage = new(redisWorkflowDao)

type redisWorkflowDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.Workflow]
}

func NewRedisWorkflowDao(conf Config, encoderDecoder util.EncoderDecoder[model.Workflow]) *redisWorkflowDao {
	return &redisWorkflowDao{
		baseDao:        newBaseDao(conf),
		encoderDecoder: encoderDecoder,
	}
}

func (wd *redisWorkflowDao) Save(wf model.Workflow) error {
	data, err := wd.encoderDecoder.Encode(wf)
	if err != nil {
		return err
	}
	key := wd.getNamespaceKey(WORKFLOW_DEF)
	if err := wd.redisClient.HSet(context.Background(), key, []string{wf.Name, string(data)}).Err(); err != nil {
		logger.Error("error in saving workflow definition", zap.String("workflow", wf.Name), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (wd *redisWorkflowDao) Load(name string) (*model.Workflow, error) {
	key := wd.getNamespaceKey(WORKFLOW_DEF)
	val, err := wd.redisClient.HGet(context.Background(), key, name).Result()
	if errors.Is(err, rd.Nil) {
		return nil, persistence.NotFoundError{Kind: "workflow", Name: name}
	}
	if err != nil {
		logger.Error("error in getting workflow definition", zap.String("workflow", name), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return wd.encoderDecoder.Decode([]byte(val))
}

func (wd *redisWorkflowDao) Delete(name string) error {
	key := wd.getNamespaceKey(WORKFLOW_DEF)
	removed, err := wd.redisClient.HDel(context.Background(), key, name).Result()
	if err != nil {
		logger.Error("error in deleting workflow definition", zap.String("workflow", name), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if removed == 0 {
		return persistence.NotFoundError{Kind: "workflow", Name: name}
	}
	return nil
}

func (wd *redisWorkflowDao) List() ([]string, error) {
	key := wd.getNamespaceKey(WORKFLOW_DEF)
	names, err := wd.redisClient.HKeys(context.Background(), key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	sort.Strings(names)
	return names, nil
}
