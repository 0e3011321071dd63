// Package ingest reads recorded tick history into the shape
// internal/tickdiff consumes: a flat CSV dump of per-symbol depth
// snapshots, one row per tick.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/ajmal017/pyquant/internal/tickdiff"
)

// Row layout: symbol,unix_nanos,depth,bid_price_1,bid_volume_1,ask_price_1,ask_volume_1,bid_price_2,...
// repeated for depth columns. A header row is required and ignored.
func ReadTicks(r io.Reader, maxDepth int) ([]tickdiff.Tick, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // depth varies row to row

	if _, err := reader.Read(); err != nil { // discard header
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var ticks []tickdiff.Tick
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		tick, err := parseRow(record, maxDepth)
		if err != nil {
			return nil, fmt.Errorf("parse row %d: %w", len(ticks)+1, err)
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

func parseRow(record []string, maxDepth int) (tickdiff.Tick, error) {
	if len(record) < 3 {
		return tickdiff.Tick{}, fmt.Errorf("expected at least 3 fields, got %d", len(record))
	}
	symbol := record[0]

	nanos, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return tickdiff.Tick{}, fmt.Errorf("parse timestamp: %w", err)
	}
	ts := time.Unix(0, nanos).UTC()

	depth, err := strconv.Atoi(record[2])
	if err != nil {
		return tickdiff.Tick{}, fmt.Errorf("parse depth: %w", err)
	}
	if depth > maxDepth {
		depth = maxDepth
	}

	const fieldsPerLevel = 4
	needed := 3 + depth*fieldsPerLevel
	if len(record) < needed {
		return tickdiff.Tick{}, fmt.Errorf("depth %d needs %d fields, got %d", depth, needed, len(record))
	}

	tick := tickdiff.Tick{
		Symbol:    symbol,
		Time:      ts,
		DataDepth: depth,
		BidPrice:  make([]common.Price, depth),
		BidVolume: make([]uint64, depth),
		AskPrice:  make([]common.Price, depth),
		AskVolume: make([]uint64, depth),
	}
	for i := 0; i < depth; i++ {
		base := 3 + i*fieldsPerLevel
		bidPrice, err := strconv.ParseFloat(record[base], 64)
		if err != nil {
			return tickdiff.Tick{}, fmt.Errorf("parse bid price at level %d: %w", i, err)
		}
		bidVolume, err := strconv.ParseUint(record[base+1], 10, 64)
		if err != nil {
			return tickdiff.Tick{}, fmt.Errorf("parse bid volume at level %d: %w", i, err)
		}
		askPrice, err := strconv.ParseFloat(record[base+2], 64)
		if err != nil {
			return tickdiff.Tick{}, fmt.Errorf("parse ask price at level %d: %w", i, err)
		}
		askVolume, err := strconv.ParseUint(record[base+3], 10, 64)
		if err != nil {
			return tickdiff.Tick{}, fmt.Errorf("parse ask volume at level %d: %w", i, err)
		}
		tick.BidPrice[i] = common.NewPrice(bidPrice)
		tick.BidVolume[i] = bidVolume
		tick.AskPrice[i] = common.NewPrice(askPrice)
		tick.AskVolume[i] = askVolume
	}
	return tick, nil
}
