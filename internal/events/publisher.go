// Package events publishes one Kafka message per catalog entry written.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/observability"
)

type Event struct {
	Catalog    string         `json:"catalog"`
	Variant    string         `json:"variant"`
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	BBox       [4]float64     `json:"bbox"` // xmin, ymin, xmax, ymax in LV03
	Cells      []string       `json:"h3,omitempty"`
	Attributes map[string]any `json:"attributes"`
	TS         time.Time      `json:"ts"`
}

func NewEvent(catalog, variant string, e model.Entry, now time.Time) Event {
	bb := e.Footprint.Bounds()
	return Event{
		Catalog:    catalog,
		Variant:    variant,
		ID:         e.ID,
		Source:     e.SourcePath,
		BBox:       [4]float64{bb.X1, bb.Y1, bb.X2, bb.Y2},
		Cells:      e.Cells,
		Attributes: e.Attributes,
		TS:         now.UTC(),
	}
}

type Publisher struct {
	topic   string
	catalog string
	variant string
	prod    sarama.SyncProducer
	now     func() time.Time
}

func NewPublisher(brokers []string, topic, catalog, variant string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create sync producer: %w", err)
	}
	return newWithProducer(prod, topic, catalog, variant), nil
}

func newWithProducer(prod sarama.SyncProducer, topic, catalog, variant string) *Publisher {
	return &Publisher{
		topic:   topic,
		catalog: catalog,
		variant: variant,
		prod:    prod,
		now:     time.Now,
	}
}

// Publish sends the entry keyed by its id, so all events of one file land on
// the same partition.
func (p *Publisher) Publish(ctx context.Context, e model.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(NewEvent(p.catalog, p.variant, e, p.now()))
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.ID, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.ID),
		Value: sarama.ByteEncoder(b),
	}
	_, _, err = p.prod.SendMessage(msg)
	observability.ObserveEventPublish(err)
	if err != nil {
		return fmt.Errorf("events: send %s: %w", e.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
