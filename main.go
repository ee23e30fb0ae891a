package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chat-sync-client/conf"
	"chat-sync-client/controller"
	"chat-sync-client/service/attachment_service"
	"chat-sync-client/service/auth_service"
	chatcenter "chat-sync-client/service/chat_center"
	"chat-sync-client/service/history_service"
	"chat-sync-client/service/message_store"
	"chat-sync-client/service/pebble_service"
	"chat-sync-client/service/redis_service"
	"chat-sync-client/service/socket_client_service"
	"chat-sync-client/tool"
)

// storageBackend is a message_store.Storage with a lifecycle.
type storageBackend interface {
	message_store.Storage
	Close() error
}

func initStorage(ctx context.Context) (storageBackend, error) {
	switch conf.StorageDriver {
	case "redis":
		rs := redis_service.NewRedisService(&redis_service.Config{
			Addr:     conf.StorageRedisAddr,
			Password: conf.StorageRedisPassword,
			DB:       conf.StorageRedisDB,
		})
		if err := rs.Initialize(ctx); err != nil {
			rs.Close()
			return nil, err
		}
		return rs, nil
	case "pebble", "":
		ps := pebble_service.NewPebbleService(&pebble_service.Config{
			DBPath: conf.StorageDBPath,
		})
		if err := ps.Initialize(); err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", conf.StorageDriver)
	}
}

func initChatCenter(ctx context.Context, storage message_store.Storage, credentials *auth_service.CredentialStore) *chatcenter.ChatCenter {
	log.Printf("🚀 Initializing chat center...")

	// 1. 连接配置
	socketConfig := &socket_client_service.Config{
		ServerURL:    conf.ChatServerURL,
		PathTemplate: conf.ChatWSPathTemplate,
		Transport:    conf.ChatTransport,
		SocketPath:   conf.ChatSocketPath,
		Timeout:      conf.ChatConnectTimeout,
	}

	// 2. 消息存储配置
	storeConfig := &message_store.Config{
		Namespace:    conf.StoreNamespace,
		DeletePolicy: message_store.DeletePolicy(conf.StoreDeletePolicy),
		Compress:     conf.StoreCompress,
	}

	// 3. 附件配置
	attachmentConfig := &attachment_service.Config{
		VideoTargetBytes: int64(conf.AttachmentVideoTargetMB) * attachment_service.MB,
		MaxFileBytes:     int64(conf.AttachmentMaxFileMB) * attachment_service.MB,
		Location: attachment_service.LocationOptions{
			Timeout: tool.SecondsOrDefault(conf.LocationTimeoutSeconds, attachment_service.DefaultLocationTimeout),
			MaxAge:  tool.SecondsOrDefault(conf.LocationMaxAgeSeconds, attachment_service.DefaultLocationMaxAge),
		},
	}

	history := history_service.NewClient(&history_service.Config{
		BaseURL:      conf.ChatRestURL,
		PathTemplate: conf.ChatHistoryPathTemplate,
		Timeout:      tool.SecondsOrDefault(conf.ChatRequestTimeout, history_service.DefaultTimeout),
	})

	opts := chatcenter.Options{
		Storage:     storage,
		Credentials: credentials,
		History:     history,
		Locator:     attachment_service.ContextLocator{},
	}
	if compressor, ok := attachment_service.NewFFmpegCompressor(filepath.Join(os.TempDir(), "chat-sync-video")); ok {
		opts.Compressor = compressor
		log.Printf("✅ Video compression via %s", compressor.Binary)
	} else {
		log.Printf("⚠️ ffmpeg not found, videos over %d MB cannot be sent", conf.AttachmentVideoTargetMB)
	}

	center := chatcenter.NewChatCenter(&chatcenter.Config{
		SocketConfig:     socketConfig,
		StoreConfig:      storeConfig,
		AttachmentConfig: attachmentConfig,
		TypingIdle:       tool.MillisOrDefault(conf.TypingIdleMs, 0),
		TypingExpiry:     tool.MillisOrDefault(conf.TypingExpiryMs, 0),
		ClearOnSwitch:    conf.ChatClearOnSwitch,
		HistoryTimeout:   tool.SecondsOrDefault(conf.ChatRequestTimeout, history_service.DefaultTimeout),
	}, opts)

	if err := center.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize chat center: %v", err)
	}

	log.Printf("🔗 Chat server: %s (%s)", conf.ChatServerURL, conf.ChatTransport)
	log.Printf("🗄️ Storage: %s", conf.StorageDriver)
	return center
}

func main() {
	var env, configPath string
	flag.StringVar(&env, "env", "local", "env config: local, testnet, mainnet")
	flag.StringVar(&configPath, "config", "", "config file, overrides -env")
	flag.Parse()

	conf.SystemEnvironmentEnum = conf.ParseEnvironment(env)
	conf.InitConfig(configPath)

	fmt.Printf("run chat-sync-client, env: %s\n", env)

	ctx := context.Background()
	storage, err := initStorage(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}

	credentials := auth_service.NewCredentialStore(storage)
	if err := credentials.Initialize(ctx, conf.AuthToken); err != nil {
		log.Fatalf("❌ Failed to initialize credentials: %v", err)
	}

	center := initChatCenter(ctx, storage, credentials)
	router := controller.NewRouter(controller.NewChatController(center, credentials))

	go func() {
		if err := controller.Run(router); err != nil {
			log.Printf("❌ Local bridge stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 Shutting down...")
	done := make(chan struct{})
	go func() {
		if err := center.Stop(); err != nil {
			log.Printf("❌ Chat center stop failed: %v", err)
		}
		if err := storage.Close(); err != nil {
			log.Printf("❌ Storage close failed: %v", err)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Printf("⚠️ Shutdown timed out")
	}
}
