package l2

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/carelink/keyguard/cache"
	"github.com/carelink/keyguard/cache/mock"
	"github.com/carelink/keyguard/keys"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock.NewMockRedisClient(ctrl)
	cfg := &cache.RedisConfig{}

	c := New(cfg, mockClient)

	assert.NotNil(t, c)
	rc, ok := c.(*RedisCache)
	assert.True(t, ok)
	assert.Equal(t, mockClient, rc.client)
	assert.Equal(t, cfg, rc.cfg)
}

func TestRedisCache_Set_And_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock.NewMockRedisClient(ctrl)
	cfg := &cache.RedisConfig{}
	c := New(cfg, mockClient)

	verdict := keys.Verdict{
		Valid:       true,
		ClientSafe:  false,
		KeyType:     keys.Service,
		MaskedValue: "sk_l***********",
		Context:     "billing",
	}
	fp := keys.Fingerprint("sk_live_51Hxxxx")
	key := cfg.KeyPrefix + fp

	// Capture the encoded entry on Set, then serve it back on Get
	var stored []byte
	mockClient.EXPECT().
		Set(gomock.Any(), key, gomock.Any(), cfg.TTL).
		DoAndReturn(func(_ context.Context, _ string, value interface{}, _ time.Duration) *redis.StatusCmd {
			stored = value.([]byte)
			return redis.NewStatusResult("OK", nil)
		})

	c.Set(fp, verdict)

	mockClient.EXPECT().Get(gomock.Any(), key).Return(redis.NewStringResult(string(stored), nil))

	got, found := c.Get(fp)
	assert.True(t, found)
	assert.Equal(t, verdict, *got)
}

func TestRedisCache_Get_Miss(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock.NewMockRedisClient(ctrl)
	cfg := &cache.RedisConfig{}
	c := New(cfg, mockClient)

	fp := keys.Fingerprint("never-stored")
	mockClient.EXPECT().
		Get(gomock.Any(), cfg.KeyPrefix+fp).
		Return(redis.NewStringResult("", redis.Nil))

	got, found := c.Get(fp)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestRedisCache_Get_ClientError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock.NewMockRedisClient(ctrl)
	cfg := &cache.RedisConfig{}
	c := New(cfg, mockClient)

	mockClient.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(redis.NewStringResult("", errors.New("connection refused")))

	got, found := c.Get("any")
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestRedisCache_Get_CorruptEntryDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock.NewMockRedisClient(ctrl)
	cfg := &cache.RedisConfig{}
	c := New(cfg, mockClient)

	key := cfg.KeyPrefix + "bad"
	mockClient.EXPECT().Get(gomock.Any(), key).Return(redis.NewStringResult("{not-json", nil))
	// Corrupt entry must be deleted on read
	mockClient.EXPECT().Del(gomock.Any(), key).Return(redis.NewIntResult(1, nil))

	got, found := c.Get("bad")
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestRedisCache_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock.NewMockRedisClient(ctrl)
	cfg := &cache.RedisConfig{}
	c := New(cfg, mockClient)

	fp := keys.Fingerprint("anon_key_1")
	mockClient.EXPECT().
		Del(gomock.Any(), cfg.KeyPrefix+fp).
		Return(redis.NewIntResult(1, nil))

	c.Delete(fp)
}

func TestRedisCache_KeyPrefixApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock.NewMockRedisClient(ctrl)
	cfg := &cache.RedisConfig{KeyPrefix: "test:verdict:"}
	c := New(cfg, mockClient)

	var stored []byte
	mockClient.EXPECT().
		Set(gomock.Any(), "test:verdict:abc", gomock.Any(), cfg.TTL).
		DoAndReturn(func(_ context.Context, _ string, value interface{}, _ time.Duration) *redis.StatusCmd {
			stored = value.([]byte)
			return redis.NewStatusResult("OK", nil)
		})

	c.Set("abc", keys.Verdict{Valid: true, KeyType: keys.Public})

	var verdict keys.Verdict
	assert.NoError(t, json.Unmarshal(stored, &verdict))
	assert.Equal(t, keys.Public, verdict.KeyType)
}
