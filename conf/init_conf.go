package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	Net  string = ""
	Port string = ""

	// Chat endpoints
	ChatServerURL           string = ""
	ChatRestURL             string = ""
	ChatTransport           string = ""
	ChatSocketPath          string = ""
	ChatWSPathTemplate      string = ""
	ChatHistoryPathTemplate string = ""
	ChatConnectTimeout      int    = 0
	ChatRequestTimeout      int    = 0
	ChatClearOnSwitch       bool   = false

	// Message store
	StoreNamespace    string = ""
	StoreDeletePolicy string = ""
	StoreCompress     bool   = true

	// Durable storage
	StorageDriver        string = ""
	StorageDBPath        string = ""
	StorageRedisAddr     string = ""
	StorageRedisPassword string = ""
	StorageRedisDB       int    = 0

	AuthToken string = ""

	TypingIdleMs   int = 0
	TypingExpiryMs int = 0

	AttachmentVideoTargetMB int = 0
	AttachmentMaxFileMB     int = 0

	LocationTimeoutSeconds int = 0
	LocationMaxAgeSeconds  int = 0
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("net", "127.0.0.1")
	v.SetDefault("port", "8787")
	v.SetDefault("chat.transport", "websocket")
	v.SetDefault("chat.socket_path", "/socket.io/")
	v.SetDefault("chat.ws_path_template", "/ws/chat/{kind}/{id}/")
	v.SetDefault("chat.history_path_template", "/api/chat/{kind}/{id}/messages/")
	v.SetDefault("chat.connect_timeout", 10)
	v.SetDefault("chat.request_timeout", 15)
	v.SetDefault("chat.clear_on_switch", false)
	v.SetDefault("store.namespace", "chat-messages")
	v.SetDefault("store.delete_policy", "mark")
	v.SetDefault("store.compress", true)
	v.SetDefault("storage.driver", "pebble")
	v.SetDefault("storage.db_path", "./data/chat_pebble")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("typing.idle_ms", 700)
	v.SetDefault("typing.expiry_ms", 2000)
	v.SetDefault("attachment.video_target_mb", 5)
	v.SetDefault("attachment.max_file_mb", 28)
	v.SetDefault("location.timeout_seconds", 15)
	v.SetDefault("location.max_age_seconds", 10)
}

func InitConfig(configPath string) {
	if configPath == "" {
		configPath = GetYaml()
	}
	fmt.Printf("configPath:%s\n", configPath)

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("CHAT_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	load(v)
}

func load(v *viper.Viper) {
	Net = v.GetString("net")
	Port = v.GetString("port")

	ChatServerURL = v.GetString("chat.server_url")
	ChatRestURL = v.GetString("chat.rest_url")
	ChatTransport = v.GetString("chat.transport")
	ChatSocketPath = v.GetString("chat.socket_path")
	ChatWSPathTemplate = v.GetString("chat.ws_path_template")
	ChatHistoryPathTemplate = v.GetString("chat.history_path_template")
	ChatConnectTimeout = v.GetInt("chat.connect_timeout")
	ChatRequestTimeout = v.GetInt("chat.request_timeout")
	ChatClearOnSwitch = v.GetBool("chat.clear_on_switch")

	StoreNamespace = v.GetString("store.namespace")
	StoreDeletePolicy = v.GetString("store.delete_policy")
	StoreCompress = v.GetBool("store.compress")

	StorageDriver = v.GetString("storage.driver")
	StorageDBPath = v.GetString("storage.db_path")
	StorageRedisAddr = v.GetString("storage.redis_addr")
	StorageRedisPassword = v.GetString("storage.redis_password")
	StorageRedisDB = v.GetInt("storage.redis_db")

	AuthToken = v.GetString("auth.token")

	TypingIdleMs = v.GetInt("typing.idle_ms")
	TypingExpiryMs = v.GetInt("typing.expiry_ms")

	AttachmentVideoTargetMB = v.GetInt("attachment.video_target_mb")
	AttachmentMaxFileMB = v.GetInt("attachment.max_file_mb")

	LocationTimeoutSeconds = v.GetInt("location.timeout_seconds")
	LocationMaxAgeSeconds = v.GetInt("location.max_age_seconds")
}
