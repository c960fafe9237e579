package metrics

import (
	"time"

	"github.com/cuemby/nodedb/pkg/db"
)

// Collector periodically samples the node database's aggregate state into
// the package's gauges: tip count, cursor height, cache size and asset slot
// usage. Orphan and BBS gauges are not sampled here.
type Collector struct {
	database *db.DB
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector bound to database.
func NewCollector(database *db.DB) *Collector {
	return &Collector{
		database: database,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	tx, err := c.database.Begin()
	if err != nil {
		return
	}
	defer tx.Rollback()

	c.collectTipMetrics(tx)
	c.collectCursorMetrics(tx)
	c.collectCacheMetrics(tx)
	c.collectAssetMetrics(tx)
}

func (c *Collector) collectTipMetrics(tx *db.Transaction) {
	tips, err := tx.EnumTips()
	if err == nil {
		TipsTotal.Set(float64(len(tips)))
	}
}

func (c *Collector) collectCursorMetrics(tx *db.Transaction) {
	height, err := tx.ParamIntGetDef(db.ParamCursorHeight, 0)
	if err == nil {
		CursorHeight.Set(float64(height))
	}
}

func (c *Collector) collectCacheMetrics(tx *db.Transaction) {
	_, blob, err := tx.ParamGet(db.ParamCacheState)
	if err != nil || blob == nil || len(*blob) < 24 {
		return
	}
	sizeCurrent := getU64(*blob, 16)
	CacheSizeBytes.Set(float64(sizeCurrent))
}

func (c *Collector) collectAssetMetrics(tx *db.Transaction) {
	used, err := tx.ParamIntGetDef(db.ParamAssetsCountUsed, 0)
	if err == nil {
		AssetsUsedTotal.Set(float64(used))
	}
	total, err := tx.ParamIntGetDef(db.ParamAssetsCount, 0)
	if err == nil && total >= used {
		AssetsFreeTotal.Set(float64(total - used))
	}
}

func getU64(b []byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[off+i])
	}
	return v
}
