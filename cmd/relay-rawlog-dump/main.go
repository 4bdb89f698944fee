package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"carla-relay-go/internal/control"
	"carla-relay-go/internal/encoding"
	"carla-relay-go/internal/output"
)

func main() {
	var (
		path      = flag.String("path", "", "Path to rawlog .bin file")
		limit     = flag.Int("limit", 10, "Number of records to dump (0 for all)")
		codecName = flag.String("control-codec", "json", "Control record encoding: json or cbor")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}
	codec, err := control.CodecFor(*codecName)
	if err != nil {
		log.Fatalf("control codec: %v", err)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	reader, err := output.NewRawLogReader(f)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}

	count := 0
	for *limit == 0 || count < *limit {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Fatalf("read record: %v", err)
		}

		log.Printf("record %d timestamp=%s size=%d", count, rec.Timestamp.Format(time.RFC3339Nano), len(rec.Payload))
		count++

		if info, err := encoding.Describe(rec.Payload); err == nil {
			fmt.Printf("frame %s %dx%d\n", info.Codec, info.Width, info.Height)
			continue
		}
		state, err := codec.Decode(rec.Payload)
		if err != nil {
			log.Printf("record %d: not a frame or %s control record: %v", count-1, codec.Name(), err)
			continue
		}
		pretty, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count-1, err)
			continue
		}
		fmt.Println(string(pretty))
	}
}
