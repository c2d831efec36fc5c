package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"filecabinet/pkg/common"
	"filecabinet/pkg/core/disk"

	"github.com/shopspring/decimal"
)

func main() {
	dir, err := os.MkdirTemp("", "cabinet-example")
	if err != nil {
		log.Fatalf("Temp dir failed: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "cabinet.db")
	fmt.Printf("Opening file store at %s...\n", path)
	st, err := disk.Open(path, nil)
	if err != nil {
		log.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	jane := common.Record{
		FirstName:     "Jane",
		LastName:      "Doe",
		DateOfBirth:   common.Date(1990, time.May, 1),
		JobExperience: 5,
		MonthlyPay:    decimal.NewFromInt(3000),
		Gender:        'F',
	}
	start := time.Now()
	id, err := st.Create(jane)
	if err != nil {
		log.Fatalf("Create failed: %v", err)
	}
	fmt.Printf("Created record #%d in %v\n", id, time.Since(start))

	for _, r := range st.FindBy(common.FieldLastName, "DOE") {
		fmt.Printf("Found: %s\n", r.String())
	}

	if err := st.Delete(id); err != nil {
		log.Fatalf("Delete failed: %v", err)
	}
	fmt.Printf("After delete: %d match(es) for DOE\n", len(st.FindBy(common.FieldLastName, "DOE")))

	stat := st.Stat()
	fmt.Printf("Stat before purge: active=%d deleted=%d\n", stat.Active, stat.Deleted)
	n, err := st.Purge()
	if err != nil {
		log.Fatalf("Purge failed: %v", err)
	}
	stat = st.Stat()
	fmt.Printf("Purged %d slot(s); stat: active=%d deleted=%d\n", n, stat.Active, stat.Deleted)
}
