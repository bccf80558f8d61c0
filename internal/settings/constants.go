package settings

// DB setting keys and defaults.
const (
	// SiteNameKey is the setting key for the platform display name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback platform display name.
	DefaultSiteName = "Workdesk"
	// CurrencyKey is the currency code stamped on orders.
	CurrencyKey = "CURRENCY"
	// DefaultCurrency is the fallback currency code.
	DefaultCurrency = "USD"
	// DefaultPlanIDKey names the plan tenants fall back to when a paid plan expires.
	DefaultPlanIDKey = "DEFAULT_PLAN_ID"
	// BankTransferEnabledKey toggles offline bank transfer payments.
	BankTransferEnabledKey = "BANK_TRANSFER_ENABLED"
	// DefaultBankTransferEnabled is the fallback bank transfer toggle.
	DefaultBankTransferEnabled = true
	// PlanExpirySweepSecondsKey controls the plan expiry sweep interval in seconds.
	PlanExpirySweepSecondsKey = "PLAN_EXPIRY_SWEEP_SECONDS"
	// DefaultPlanExpirySweepSeconds is the fallback sweep interval (seconds).
	DefaultPlanExpirySweepSeconds = 3600
	// CouponRateLimitKey caps coupon apply attempts per tenant per window.
	CouponRateLimitKey = "COUPON_RATE_LIMIT"
	// DefaultCouponRateLimit is the fallback coupon attempt limit (0 means unlimited).
	DefaultCouponRateLimit = 5
	// CouponRateWindowSecondsKey sets the coupon attempt window in seconds.
	CouponRateWindowSecondsKey = "COUPON_RATE_WINDOW_SECONDS"
	// DefaultCouponRateWindowSeconds is the fallback coupon attempt window.
	DefaultCouponRateWindowSeconds = 60
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "workdesk:rl"
)
