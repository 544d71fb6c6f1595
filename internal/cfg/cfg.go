package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jimlawless/whereami"
)

const (
	IndexBackendMemory = "memory"
	IndexBackendQdrant = "qdrant"
)

type Config struct {
	Minio     *MinIOCfg
	Http      *HTTPConfig
	Grpc      *GRPCConfig
	Db        *PGDBCfg
	Qdrant    *QdrantCfg
	Redis     *RedisCfg
	Kafka     *KafkaCfg
	Recommend *RecommendCfg
	Explain   *ExplainCfg
}

// KafkaCfg — настройки потока событий взаимодействий. Пустой Brokers отключает Kafka.
type KafkaCfg struct {
	Brokers           []string
	InteractionsTopic string // входящие события view/add_to_cart/purchase
	ServedTopic       string // исходящие события о выданных рекомендациях
	GroupID           string
	BatchSize         int
	BatchTimeout      time.Duration
}

// Enabled сообщает, сконфигурирована ли Kafka.
func (k *KafkaCfg) Enabled() bool {
	return len(k.Brokers) > 0
}

type MinIOCfg struct {
	MinioEndpoint     string        // Адрес конечной точки Minio
	MinioRootUser     string        // Имя пользователя для доступа к Minio
	MinioRootPassword string        // Пароль для доступа к Minio
	MinioUseSSL       bool          // Использовать TLS при подключении
	EmbeddingsBucket  string        // Бакет со снапшотами эмбеддингов
	EmbeddingsObject  string        // Объект JSON Lines с эмбеддингами товаров
	ReloadInterval    time.Duration // Период перезагрузки датасета, 0 выключает
}

type HTTPConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestsPerMinute int
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QdrantCfg struct {
	IndexBackend         string // memory | qdrant
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // префикс имени коллекции в Qdrant
	UseTLS               bool
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ProductTTL  time.Duration
}

// RecommendCfg — параметры гибридного движка рекомендаций.
type RecommendCfg struct {
	WeightPurchase float64
	WeightCart     float64
	WeightView     float64

	DecayEnabled bool
	DecayLambda  float64
	DecayUnit    time.Duration // единица Δt для экспоненциального затухания профиля

	CartDecayRate float64 // затухание вероятности корзины/покупки, в днях

	ViewSeeds     int
	ViewTopK      int
	CartSeeds     int
	CartTopK      int
	PurchaseSeeds int
	PurchaseTopK  int
	ProfileTopK   int
	FinalTopK     int

	EnrichConcurrency int
}

// ExplainCfg — параметры генератора объяснений. Пустой APIKey включает офлайн-режим.
type ExplainCfg struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	Timeout        time.Duration
	CacheTTL       time.Duration
	RatePerSecond  float64
	Burst          int
	MaxRetries     int
	RetryBaseDelay time.Duration
	BreakerFails   int
	BreakerTimeout time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommend, err := loadRecommendCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	explain, err := loadExplainCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Minio:     minio,
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Db:        db,
		Qdrant:    qdrant,
		Redis:     redis,
		Kafka:     kafka,
		Recommend: recommend,
		Explain:   explain,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultInteractionsTopic = "interactions"
		defaultServedTopic       = "recommendations-served"
		defaultGroupID           = "recommender"
		defaultBatchSize         = 100
		defaultBatchTimeout      = time.Second
	)

	var brokers []string
	if brokerStr := getEnv("KAFKA_BROKERS"); brokerStr != "" {
		for _, b := range strings.Split(brokerStr, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	batchSize, err := parseIntEnv("KAFKA_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		return nil, e.Wrap("KAFKA_BATCH_SIZE", err)
	}

	batchTimeout, err := parseDurationEnv("KAFKA_BATCH_TIMEOUT", defaultBatchTimeout)
	if err != nil {
		return nil, e.Wrap("KAFKA_BATCH_TIMEOUT", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		InteractionsTopic: getEnvOrDefault("KAFKA_INTERACTIONS_TOPIC", defaultInteractionsTopic),
		ServedTopic:       getEnvOrDefault("KAFKA_SERVED_TOPIC", defaultServedTopic),
		GroupID:           getEnvOrDefault("KAFKA_GROUP_ID", defaultGroupID),
		BatchSize:         batchSize,
		BatchTimeout:      batchTimeout,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL           = false
		defaultEndpoint         = "minio:9000"
		defaultEmbeddingsBucket = "embeddings"
		defaultEmbeddingsObject = "product_embeddings.jsonl"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	reloadInterval, err := parseDurationEnv("EMBEDDINGS_RELOAD_INTERVAL", 0)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDINGS_RELOAD_INTERVAL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		EmbeddingsBucket:  getEnvOrDefault("EMBEDDINGS_BUCKET", defaultEmbeddingsBucket),
		EmbeddingsObject:  getEnvOrDefault("EMBEDDINGS_OBJECT", defaultEmbeddingsObject),
		ReloadInterval:    reloadInterval,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort              = "8080"
		defaultReadTimeout       = 5 * time.Second
		defaultWriteTimeout      = 60 * time.Second
		defaultIdleTimeout       = 60 * time.Second
		defaultRequestsPerMinute = 600
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	// Объяснения могут занимать до EXPLAIN_TIMEOUT, поэтому запас на запись больше, чем на чтение
	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	rpm, err := parseIntEnv("HTTP_REQUESTS_PER_MINUTE", defaultRequestsPerMinute)
	if err != nil {
		log.Errorf(err, "invalid HTTP_REQUESTS_PER_MINUTE")
		return nil, err
	}

	return &HTTPConfig{
		Port:              port,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		RequestsPerMinute: rpm,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	for _, key := range []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
		if getEnv(key) == "" {
			err := fmt.Errorf("%s is required", key)
			log.Errorf(err, "missing %s", key)
			return nil, err
		}
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     getEnv("POSTGRES_USER"),
		Password: getEnv("POSTGRES_PASSWORD"),
		DBName:   getEnv("POSTGRES_DB"),
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultCollectionName = "products"
	)

	backend := strings.ToLower(getEnvOrDefault("INDEX_BACKEND", IndexBackendMemory))
	if backend != IndexBackendMemory && backend != IndexBackendQdrant {
		err := fmt.Errorf("%w: INDEX_BACKEND=%q", e.ErrIncorrectEnvVariable, backend)
		logger.Errorf(err, "invalid INDEX_BACKEND")
		return nil, err
	}

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		IndexBackend:         backend,
		Host:                 getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollectionName),
		UseTLS:               useTLS,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultProductTTL   = 3 * time.Minute
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	productTTL, err := parseDurationEnv("PRODUCT_TTL", defaultProductTTL)
	if err != nil {
		log.Errorf(err, "invalid PRODUCT_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		ProductTTL:  productTTL,
	}, nil
}

func loadRecommendCfg(log logger.Logger) (*RecommendCfg, error) {
	const (
		defaultWeightPurchase = 5.0
		defaultWeightCart     = 3.0
		defaultWeightView     = 1.0
		defaultDecayLambda    = 0.05
		defaultDecayUnit      = time.Second
		defaultCartDecayRate  = 0.1
	)

	c := &RecommendCfg{DecayUnit: defaultDecayUnit}

	floats := []struct {
		key  string
		def  float64
		dest *float64
	}{
		{"WEIGHT_PURCHASE", defaultWeightPurchase, &c.WeightPurchase},
		{"WEIGHT_ADD_TO_CART", defaultWeightCart, &c.WeightCart},
		{"WEIGHT_VIEW", defaultWeightView, &c.WeightView},
		{"PROFILE_DECAY_LAMBDA", defaultDecayLambda, &c.DecayLambda},
		{"CART_DECAY_RATE", defaultCartDecayRate, &c.CartDecayRate},
	}
	for _, f := range floats {
		v, err := parseFloatEnv(f.key, f.def)
		if err != nil || v < 0 {
			log.Errorf(e.ErrIncorrectEnvVariable, "invalid %s", f.key)
			return nil, e.Wrap(f.key, e.ErrIncorrectEnvVariable)
		}
		*f.dest = v
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"VIEW_SEEDS", 3, &c.ViewSeeds},
		{"VIEW_TOP_K", 5, &c.ViewTopK},
		{"CART_SEEDS", 3, &c.CartSeeds},
		{"CART_TOP_K", 3, &c.CartTopK},
		{"PURCHASE_SEEDS", 3, &c.PurchaseSeeds},
		{"PURCHASE_TOP_K", 3, &c.PurchaseTopK},
		{"PROFILE_TOP_K", 10, &c.ProfileTopK},
		{"FINAL_TOP_K", 5, &c.FinalTopK},
		{"ENRICH_CONCURRENCY", 4, &c.EnrichConcurrency},
	}
	for _, i := range ints {
		v, err := parseIntEnv(i.key, i.def)
		if err != nil || v <= 0 {
			log.Errorf(e.ErrIncorrectEnvVariable, "invalid %s", i.key)
			return nil, e.Wrap(i.key, e.ErrIncorrectEnvVariable)
		}
		*i.dest = v
	}

	decayEnabled, err := strconv.ParseBool(getEnvOrDefault("PROFILE_DECAY_ENABLED", "true"))
	if err != nil {
		log.Errorf(err, "invalid PROFILE_DECAY_ENABLED")
		return nil, err
	}
	c.DecayEnabled = decayEnabled

	decayUnit, err := parseDurationEnv("PROFILE_DECAY_UNIT", defaultDecayUnit)
	if err != nil || decayUnit <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid PROFILE_DECAY_UNIT")
		return nil, e.Wrap("PROFILE_DECAY_UNIT", e.ErrIncorrectEnvVariable)
	}
	c.DecayUnit = decayUnit

	return c, nil
}

func loadExplainCfg(log logger.Logger) (*ExplainCfg, error) {
	const (
		defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
		defaultModel          = "gemini-2.0-flash"
		defaultTemperature    = 0.7
		defaultTimeout        = 30 * time.Second
		defaultCacheTTL       = 7 * 24 * time.Hour
		defaultRatePerSecond  = 5.0
		defaultBurst          = 5
		defaultMaxRetries     = 2
		defaultRetryBaseDelay = 200 * time.Millisecond
		defaultBreakerFails   = 5
		defaultBreakerTimeout = 30 * time.Second
	)

	temperature, err := parseFloatEnv("GEMINI_TEMPERATURE", defaultTemperature)
	if err != nil {
		log.Errorf(err, "invalid GEMINI_TEMPERATURE")
		return nil, err
	}

	timeout, err := parseDurationEnv("EXPLAIN_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_TIMEOUT")
		return nil, err
	}

	cacheTTL, err := parseDurationEnv("EXPLAIN_CACHE_TTL", defaultCacheTTL)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_CACHE_TTL")
		return nil, err
	}

	rps, err := parseFloatEnv("EXPLAIN_RATE_PER_SECOND", defaultRatePerSecond)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_RATE_PER_SECOND")
		return nil, err
	}

	burst, err := parseIntEnv("EXPLAIN_BURST", defaultBurst)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_BURST")
		return nil, err
	}

	maxRetries, err := parseIntEnv("EXPLAIN_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_MAX_RETRIES")
		return nil, err
	}

	retryBaseDelay, err := parseDurationEnv("EXPLAIN_RETRY_BASE_DELAY", defaultRetryBaseDelay)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_RETRY_BASE_DELAY")
		return nil, err
	}

	breakerFails, err := parseIntEnv("EXPLAIN_BREAKER_FAILURES", defaultBreakerFails)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_BREAKER_FAILURES")
		return nil, err
	}

	breakerTimeout, err := parseDurationEnv("EXPLAIN_BREAKER_TIMEOUT", defaultBreakerTimeout)
	if err != nil {
		log.Errorf(err, "invalid EXPLAIN_BREAKER_TIMEOUT")
		return nil, err
	}

	return &ExplainCfg{
		APIKey:         getEnv("GEMINI_API_KEY"),
		BaseURL:        getEnvOrDefault("GEMINI_BASE_URL", defaultBaseURL),
		Model:          getEnvOrDefault("GEMINI_MODEL", defaultModel),
		Temperature:    temperature,
		Timeout:        timeout,
		CacheTTL:       cacheTTL,
		RatePerSecond:  rps,
		Burst:          burst,
		MaxRetries:     maxRetries,
		RetryBaseDelay: retryBaseDelay,
		BreakerFails:   breakerFails,
		BreakerTimeout: breakerTimeout,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return f, nil
}
