// Copyright (c) 2022 The rcproxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the YAML configuration a corenet-based process
// starts from: listen/admin ports, log sink settings, and the Host tuning
// knobs exposed as Options in the root package.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rcproxy/corenet/pkg/logging"
)

// Config is the top-level shape of a corenet process's YAML config file.
type Config struct {
	Port         int        `yaml:"port"`
	WebPort      int        `yaml:"web_port"`
	LogPath      string     `yaml:"log_path"`
	LogLevel     string     `yaml:"log_level"`
	LogExpireDay int        `yaml:"log_expire_day"`
	Host         HostConfig `yaml:"host"`
}

// HostConfig mirrors the corenet.Option knobs so they can be set from a
// config file instead of hardcoded call sites.
type HostConfig struct {
	SocketBufferSize  int `yaml:"socket_buffer_size"`
	MessageBufferSize int `yaml:"message_buffer_size"`
	QueueCapacity     int `yaml:"queue_capacity"`
	PoolCapacity      int `yaml:"pool_capacity"`
}

// LoadConfig reads and validates a YAML config file from fileName.
func LoadConfig(fileName string) (*Config, error) {
	file, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file from %s", fileName)
	}
	var cfg Config
	if err = yaml.Unmarshal(file, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", fileName)
	}
	if err = cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "config validate failed")
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if _, ok := logging.LevelFromString(c.LogLevel); !ok {
		return errors.Errorf("unknown log level %s", c.LogLevel)
	}
	if c.Host.QueueCapacity < 0 {
		return errors.Errorf("negative queue_capacity %d", c.Host.QueueCapacity)
	}
	if c.Host.PoolCapacity < 0 {
		return errors.Errorf("negative pool_capacity %d", c.Host.PoolCapacity)
	}
	return nil
}
