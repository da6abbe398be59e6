package config

import "github.com/oddbit-project/roadwatch/utils"

const (
	ErrNoKey       = utils.Error("Config key does not exist")
	ErrInvalidType = utils.Error("Invalid destination type")
)

type ConfigProvider interface {
	Get(dest interface{}) error
	GetKey(key string, dest interface{}) error
	GetStringKey(key string) (string, error)
	GetBoolKey(key string) (bool, error)
	GetIntKey(key string) (int, error)
	GetConfigNode(key string) (ConfigProvider, error)
	KeyExists(key string) bool
	KeyListExists(keys []string) bool
}
