package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"chartfeed/internal/domain"
)

func WriteCandlesToCSV(symbol string, tf domain.Timeframe, candles []domain.Candle, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"bucket_start", "symbol", "timeframe", "open", "high", "low", "close", "volume"})

	for _, c := range candles {
		writer.Write([]string{
			time.UnixMilli(c.BucketStart).UTC().Format(time.RFC3339),
			symbol,
			string(tf),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}
