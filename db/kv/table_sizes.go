package kv

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/metrics"
)

var dbTableEntries = metrics.GetOrCreateGaugeVec("db_table_entries", []string{"db", "table"})

type TableSize struct {
	Name    string
	Entries uint64
}

// CollectTableSizes counts the entries of every live table, largest first.
func CollectTableSizes(ctx context.Context, db RoDB) ([]TableSize, error) {
	allTablesCfg := db.AllTables()
	allTables := make([]string, 0, len(allTablesCfg))
	for table, cfg := range allTablesCfg {
		if cfg.IsDeprecated {
			continue
		}

		allTables = append(allTables, table)
	}

	tableSizes := make([]TableSize, 0, len(allTables))
	err := db.View(ctx, func(tx Tx) error {
		for _, table := range allTables {
			n, err := tx.Count(table)
			if err != nil {
				return err
			}

			tableSizes = append(tableSizes, TableSize{Name: table, Entries: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tableSizes, func(i, j int) bool {
		if tableSizes[i].Entries == tableSizes[j].Entries {
			return tableSizes[i].Name < tableSizes[j].Name
		}
		return tableSizes[i].Entries > tableSizes[j].Entries
	})

	return tableSizes, nil
}

// CollectTableSizesPeriodically exports the table sizes as gauges every
// interval until ctx is done.
func CollectTableSizesPeriodically(ctx context.Context, db RoDB, label Label, interval time.Duration, logger log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tableSizes, err := CollectTableSizes(ctx, db)
			if err != nil {
				logger.Error("[kv] failed to collect table sizes", "err", err)
				continue
			}

			var sb strings.Builder
			for _, t := range tableSizes {
				dbTableEntries.WithLabelValues(string(label), t.Name).Set(float64(t.Entries))
				if t.Entries == 0 {
					continue
				}

				sb.WriteString(t.Name)
				sb.WriteRune(':')
				sb.WriteString(strconv.FormatUint(t.Entries, 10))
				sb.WriteRune(',')
			}

			logger.Debug("[kv] table sizes", "all", sb.String())
		}
	}
}
