package metadata

// --- SQLite Keys ---
// 这些键用于 metadata 表的 key 列。
const (
	// LastSnapshotSettlementSeqKey 存储最近一次成功的账号统计快照所覆盖的
	// 最大结算序号。结算顺序与对战ID无关，检查点按序号记录。
	LastSnapshotSettlementSeqKey = "last_snapshot_settlement_seq"

	// SnapshotTotalBattlesKey 存储快照时刻的已结算对战总数。
	SnapshotTotalBattlesKey = "snapshot_total_battles"

	// LastDecaySweepAtKey 存储最近一次衰减扫描完成的时间(RFC3339)。
	// 调度器重启后据此补算离线期间流逝的小时数。
	LastDecaySweepAtKey = "last_decay_sweep_at"
)

// --- Redis Keys ---
const (
	// RedisLastSettledSeqKey 是一个Redis String，存储结算处理器
	// 已成功处理的最大结算序号。这是实时检查点，只前进不后退。
	RedisLastSettledSeqKey = "meta:last_settled_seq"

	// RedisTotalBattlesKey 是一个Redis String计数器，存储实时的已结算对战总数。
	RedisTotalBattlesKey = "meta:total_battles"
)
