package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/config"
	"github.com/ukydev/road-vision/internal/datasource"
	"github.com/ukydev/road-vision/internal/gateway"
	"github.com/ukydev/road-vision/internal/models"
	"github.com/ukydev/road-vision/internal/processing"
)

// storeClient posts classified batches to the store API.
type storeClient struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func newStoreClient(baseURL, authToken string) *storeClient {
	return &storeClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// postBatch sends one batch and returns the per-item outcomes.
func (c *storeClient) postBatch(ctx context.Context, batch []models.ProcessedAgentData) ([]gateway.Outcome, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/processed_agent_data/", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusMultiStatus, http.StatusInternalServerError:
		var outcomes []gateway.Outcome
		if err := json.NewDecoder(resp.Body).Decode(&outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes (%s): %w", resp.Status, err)
		}
		return outcomes, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("store rejected batch: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
}

func chunk(items []models.ProcessedAgentData, size int) [][]models.ProcessedAgentData {
	var out [][]models.ProcessedAgentData
	for size < len(items) {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// sendHTTP classifies locally and posts every sample in batches. It returns
// how many items the store accepted.
func sendHTTP(ctx context.Context, client *storeClient, samples []models.AgentData, batchSize int, delay time.Duration) (int, error) {
	stored := 0
	for _, batch := range chunk(processing.ProcessBatch(samples), batchSize) {
		outcomes, err := client.postBatch(ctx, batch)
		if err != nil {
			return stored, err
		}
		for _, o := range outcomes {
			if o.OK() {
				stored++
				log.WithFields(log.Fields{"record_id": o.Record.ID, "road_state": o.Record.RoadState}).Debug("Stored record")
				continue
			}
			log.WithFields(log.Fields{"index": o.Index, "error": o.Error}).Warn("Store rejected item")
		}
		if err := sleep(ctx, delay); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

// publishMQTT publishes each raw sample for the edge service to classify.
func publishMQTT(ctx context.Context, client mqtt.Client, topic string, samples []models.AgentData, delay time.Duration) (int, error) {
	published := 0
	for _, sample := range samples {
		data, err := json.Marshal(sample)
		if err != nil {
			return published, fmt.Errorf("encode sample: %w", err)
		}
		token := client.Publish(topic, 1, false, data)
		if !token.WaitTimeout(10 * time.Second) {
			return published, fmt.Errorf("publish to %s timed out", topic)
		}
		if err := token.Error(); err != nil {
			return published, fmt.Errorf("publish to %s: %w", topic, err)
		}
		published++
		if err := sleep(ctx, delay); err != nil {
			return published, err
		}
	}
	return published, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func run(ctx context.Context, cfg config.AgentConfig) error {
	source := datasource.NewFileDatasource(cfg.AccelerometerFile, cfg.GpsFile, cfg.ParkingFile, cfg.UserID)
	samples, err := source.Read()
	if err != nil {
		return fmt.Errorf("read sensor files: %w", err)
	}
	log.WithFields(log.Fields{"samples": len(samples), "user_id": cfg.UserID}).Info("Sensor data aggregated")

	if cfg.UseMQTT() {
		client := mqtt.NewClient(mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(fmt.Sprintf("road-vision-agent-%d-%d", cfg.UserID, time.Now().UnixNano())))
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("connect to broker: %w", token.Error())
		}
		defer client.Disconnect(250)

		n, err := publishMQTT(ctx, client, cfg.MQTTTopic, samples, cfg.Delay)
		log.WithFields(log.Fields{"published": n, "topic": cfg.MQTTTopic}).Info("Publishing finished")
		return err
	}

	n, err := sendHTTP(ctx, newStoreClient(cfg.StoreAPIURL, cfg.AuthToken), samples, cfg.BatchSize, cfg.Delay)
	log.WithFields(log.Fields{"stored": n, "api_url": cfg.StoreAPIURL}).Info("Upload finished")
	return err
}

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Error("Agent failed")
		os.Exit(1)
	}
}
