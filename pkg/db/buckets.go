package db

// Bucket names. Each is a logical "table" in the database's data model,
// stored as one top-level bbolt bucket. The derived indexes
// (states_by_height_hash, states_orphans, states_children, tips,
// tips_reachable, events_by_key, bbs_by_id, bbs_by_channel, cache_by_hit,
// krn_info_by_cid) are maintained alongside their primary bucket inside the
// same transaction, never cached across transactions (see DESIGN.md).
var (
	bucketParams = []byte("params")

	bucketStates          = []byte("states")
	bucketStatesByHeight  = []byte("states_by_height_hash")
	bucketOrphans         = []byte("states_orphans")
	bucketChildren        = []byte("states_children")
	bucketTips            = []byte("tips")
	bucketTipsReachable   = []byte("tips_reachable")

	bucketBodyPerishable = []byte("state_body_perishable")
	bucketBodyEternal    = []byte("state_body_eternal")
	bucketBodyRollback   = []byte("state_body_rollback")
	bucketStateInputs    = []byte("state_inputs")

	bucketTxo = []byte("txo")

	bucketKernels = []byte("kernels")
	bucketBlocks  = []byte("blocks_by_hash")

	bucketEventsByHeight = []byte("events_by_height")
	bucketEventsByKey    = []byte("events_by_key")

	bucketDummies = []byte("dummies")

	bucketPeers = []byte("peers")

	bucketBbsByKey     = []byte("bbs_by_key")
	bucketBbsByID      = []byte("bbs_by_id")
	bucketBbsByChannel = []byte("bbs_by_channel")

	bucketUnique = []byte("unique")

	bucketCache       = []byte("cache")
	bucketCacheByHit  = []byte("cache_by_hit")

	bucketAssets    = []byte("assets")
	bucketAssetEvts = []byte("asset_events")

	bucketContractData = []byte("contract_data")
	bucketContractLogs = []byte("contract_logs")
	bucketKrnInfo      = []byte("krn_info")
	bucketKrnInfoByCid = []byte("krn_info_by_cid")

	bucketStreams = []byte("streams")
)

// allBuckets lists every bucket Open must ensure exists. Order doesn't
// matter for bbolt but is kept stable for readable integrity dumps.
var allBuckets = [][]byte{
	bucketParams,
	bucketStates, bucketStatesByHeight, bucketOrphans, bucketChildren,
	bucketTips, bucketTipsReachable,
	bucketBodyPerishable, bucketBodyEternal, bucketBodyRollback, bucketStateInputs,
	bucketTxo,
	bucketKernels, bucketBlocks,
	bucketEventsByHeight, bucketEventsByKey,
	bucketDummies,
	bucketPeers,
	bucketBbsByKey, bucketBbsByID, bucketBbsByChannel,
	bucketUnique,
	bucketCache, bucketCacheByHit,
	bucketAssets, bucketAssetEvts,
	bucketContractData, bucketContractLogs, bucketKrnInfo, bucketKrnInfoByCid,
	bucketStreams,
}
