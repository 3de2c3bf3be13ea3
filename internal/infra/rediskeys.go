package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "governor"
)

// Ключи для Sets (состояние)
const (
	RedisKeyPausedAgents = RedisNamespace + ":agents:paused_set"
	RedisKeyLockPaused   = RedisNamespace + ":lock:warmup:paused"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanKillSwitch: "agent_id:true" ставит агента на паузу, "agent_id:false" снимает.
	RedisChanKillSwitch = RedisNamespace + ":agents:kill-switch-signal"
	// RedisChanTrustUpdate: "org_id:true" сбрасывает кэш настроек доверия организации.
	RedisChanTrustUpdate = RedisNamespace + ":trust:update"
)
