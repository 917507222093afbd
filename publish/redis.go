/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package publish

import (
	"github.com/go-redis/redis"

	"github.com/bbva/imtree/group"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:    "127.0.0.1:6379",
		Channel: "imtree-events",
	}
}

// RedisPublisher publishes msgpack encoded events on a redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(conf *RedisConfig) *RedisPublisher {
	c := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	return &RedisPublisher{client: c, channel: conf.Channel}
}

func (p *RedisPublisher) Publish(e *group.Event) error {
	buf, err := e.Encode()
	if err != nil {
		return err
	}
	return p.client.Publish(p.channel, buf).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
