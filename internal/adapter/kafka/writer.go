package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/airlens-api/internal/config"
	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes scored samples to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer    messageWriter
	batchSize int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured samples topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSamplesTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, metrics: metrics, logger: logger}
}

// Publish writes every sample of the dataset in ingestion order, batchSize
// messages per WriteMessages call. It returns the number of samples written
// before the first failure.
func (w *Writer) Publish(ctx context.Context, ds *domain.Dataset) (int, error) {
	batchSize := w.batchSize
	if batchSize < 1 {
		batchSize = 1
	}
	loadedAt := ds.LoadedAt()

	written := 0
	batch := make([]kafkago.Message, 0, batchSize)
	for i := 0; i < ds.Len(); i++ {
		msg, err := serializeToMessage(ds.At(i), loadedAt)
		if err != nil {
			return written, err
		}
		batch = append(batch, msg)
		if len(batch) == batchSize || i == ds.Len()-1 {
			if err := w.writer.WriteMessages(ctx, batch...); err != nil {
				w.metrics.PublishErrors.Inc()
				return written, fmt.Errorf("write samples batch: %w", err)
			}
			written += len(batch)
			w.metrics.SamplesPublished.Add(float64(len(batch)))
			batch = batch[:0]
		}
	}

	w.logger.Info("samples published", "count", written)
	return written, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// sampleMessage is the JSON value of a published sample.
type sampleMessage struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	CO        float64   `json:"CO"`
	NO2       float64   `json:"NO2"`
	O3        float64   `json:"O3"`
	SO2       float64   `json:"SO2"`
	Composite float64   `json:"composite"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// serializeToMessage marshals a Sample into a Kafka message keyed by its coordinates.
func serializeToMessage(s domain.Sample, loadedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(sampleMessage{
		Lat:       s.Lat,
		Lon:       s.Lon,
		CO:        s.Value(domain.CO),
		NO2:       s.Value(domain.NO2),
		O3:        s.Value(domain.O3),
		SO2:       s.Value(domain.SO2),
		Composite: s.Composite,
		LoadedAt:  loadedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sample: %w", err)
	}
	key := strconv.FormatFloat(s.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(s.Lon, 'f', -1, 64)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "gas_count", Value: []byte(strconv.Itoa(domain.GasCount))},
			{Key: "loaded_at", Value: []byte(loadedAt.Format(time.RFC3339))},
		},
	}, nil
}
