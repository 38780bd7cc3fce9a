// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: March 2026
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

package billing

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// publishTimeout bounds one Publish when the caller carries no deadline.
const publishTimeout = 10 * time.Second

// KafkaSink publishes traces on a Kafka topic keyed by run id, so every
// trace of one pipeline run lands on the same partition in order.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink builds the sink for the given brokers and topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (s *KafkaSink) Publish(ctx context.Context, key string, value []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// LogSink is the fallback producer used when no broker is configured: it
// writes each trace to the log at debug level and drops it.
type LogSink struct {
	log *logrus.Logger
}

// NewLogSink builds the fallback producer.
func NewLogSink(log *logrus.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Publish(_ context.Context, key string, value []byte) error {
	s.log.WithField("run_id", key).Debugf("billing trace: %s", value)
	return nil
}

func (s *LogSink) Close() error { return nil }
