package live

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/f1-livetiming-go/log"
	"github.com/mpapenbr/f1-livetiming-go/pkg/cmd/util"
	"github.com/mpapenbr/f1-livetiming-go/pkg/config"
	"github.com/mpapenbr/f1-livetiming-go/pkg/livetiming"
	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
	natspub "github.com/mpapenbr/f1-livetiming-go/pkg/publish/nats"
	"github.com/mpapenbr/f1-livetiming-go/pkg/signalr"
	"github.com/mpapenbr/f1-livetiming-go/pkg/utils/broadcast"
)

func NewLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Connect to the live timing feed and process the events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd.Context())
		},
	}
	defaultTopics := make([]string, 0, len(model.AllTopics()))
	for _, t := range model.AllTopics() {
		defaultTopics = append(defaultTopics, t.String())
	}
	cmd.Flags().StringVar(&config.StatusURL, "status-url",
		livetiming.DefaultStatusURL,
		"URL of the streaming status document (empty to skip the check)")
	cmd.Flags().StringSliceVar(&config.Hubs, "hubs",
		[]string{model.StreamingHub},
		"hubs to connect to")
	cmd.Flags().StringSliceVar(&config.Topics, "topics",
		defaultTopics,
		"topics to subscribe")
	cmd.Flags().BoolVar(&config.Reconnect, "reconnect", true,
		"reconnect when the server closes the connection")
	cmd.Flags().IntVar(&config.HandshakeRetries, "handshake-retries",
		signalr.DefaultHandshakeRetries,
		"retries of a rejected socket upgrade offering a new cookie")
	cmd.Flags().StringVar(&config.PingInterval, "ping-interval",
		signalr.DefaultPingInterval.String(),
		"interval of keepalive requests")
	cmd.Flags().StringVar(&config.ReceiveTimeout, "receive-timeout",
		signalr.DefaultReceiveTimeout.String(),
		"max wait for a single socket read before checking keepalive")
	cmd.Flags().StringVar(&config.HTTPTimeout, "http-timeout", "30s",
		"timeout of handshake requests")
	cmd.Flags().BoolVar(&config.StrictPayloads, "strict", false,
		"stop on malformed payloads instead of logging them")
	cmd.Flags().StringVar(&config.NatsURL, "nats-url", "",
		"publish events to this NATS server")
	cmd.Flags().StringVar(&config.NatsSubjectPrefix, "nats-subject-prefix",
		natspub.DefaultSubjectPrefix,
		"subject prefix for published events")
	cmd.Flags().StringVar(&config.NatsBucket, "nats-bucket", natspub.DefaultBucket,
		"key value bucket for the latest session state (empty to disable)")
	cmd.Flags().StringVar(&config.NatsBucketTTL, "nats-bucket-ttl", "24h",
		"ttl of the bucket entries")
	return cmd
}

//nolint:funlen,cyclop // by design
func runLive(parent context.Context) error {
	if _, err := util.SetupLogger(); err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err := config.SetupTelemetry(ctx); err == nil {
			defer telemetry.Shutdown()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err := otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	httpClient := &http.Client{
		Timeout: util.ParseDuration("http-timeout", config.HTTPTimeout, 30*time.Second),
	}
	checkStreamingStatus(ctx, httpClient)
	if err := util.WaitForServices(ctx, config.URL, config.NatsURL); err != nil {
		return err
	}

	events := make(chan model.Event, 256)
	bcst := broadcast.NewBroadcastServer("events", events,
		broadcast.WithBufferSize[model.Event](256))
	var wg sync.WaitGroup
	logSub := bcst.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		logEvents(logSub)
	}()

	if config.NatsURL != "" {
		conn, err := nats.Connect(config.NatsURL, nats.Name("f1lt"))
		if err != nil {
			return err
		}
		defer conn.Close()
		var opts []natspub.Option
		opts = append(opts, natspub.WithSubjectPrefix(config.NatsSubjectPrefix))
		if config.NatsBucket != "" {
			opts = append(opts, natspub.WithSnapshotBucket(config.NatsBucket,
				util.ParseDuration("nats-bucket-ttl", config.NatsBucketTTL, 24*time.Hour)))
		}
		pub, err := natspub.NewPublisher(ctx, conn, opts...)
		if err != nil {
			return err
		}
		natsSub := bcst.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Run(ctx, natsSub)
		}()
	}

	client := signalr.NewClient(config.URL,
		signalr.WithHubs(config.Hubs...),
		signalr.WithTopics(config.Topics...),
		signalr.WithReconnect(config.Reconnect),
		signalr.WithHandshakeRetries(config.HandshakeRetries),
		signalr.WithPingInterval(
			util.ParseDuration("ping-interval", config.PingInterval, signalr.DefaultPingInterval)),
		signalr.WithReceiveTimeout(
			util.ParseDuration("receive-timeout", config.ReceiveTimeout, signalr.DefaultReceiveTimeout)),
		signalr.WithHTTPClient(httpClient),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}()

	log.Info("Connecting", log.String("url", config.URL), log.Strings("topics", config.Topics))
	if err := client.Open(ctx); err != nil {
		close(events)
		wg.Wait()
		return err
	}
	runner := livetiming.NewRunner(client, livetiming.WithStrict(config.StrictPayloads))
	err := runner.Run(ctx, events)
	close(events)
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info("Stopped by signal")
		return nil
	}
	return err
}

func checkStreamingStatus(ctx context.Context, httpClient *http.Client) {
	if config.StatusURL == "" {
		return
	}
	status, err := livetiming.StreamingStatus(ctx, httpClient, config.StatusURL)
	switch {
	case err != nil:
		log.Warn("Could not read streaming status", log.ErrorField(err))
	case status == livetiming.StatusOffline:
		log.Warn("Streaming status is offline, expect no data")
	default:
		log.Info("Streaming status", log.String("status", status))
	}
}

func logEvents(events <-chan model.Event) {
	l := log.Default().Named("events")
	for ev := range events {
		switch data := ev.Data.(type) {
		case model.TrackStatus:
			l.Info("Track status",
				log.String("status", data.Description()),
				log.String("message", data.Message))
		case model.RaceControlMessage:
			l.Info("Race control",
				log.String("category", data.Category),
				log.String("message", data.Message))
		case model.DecodedPayload:
			l.Debug("Compressed payload",
				log.String("topic", ev.Topic.String()),
				log.Int("len", len(data.Text)))
		default:
			l.Info("Event",
				log.String("topic", ev.Topic.String()),
				log.Any("data", ev.Data))
		}
	}
}
