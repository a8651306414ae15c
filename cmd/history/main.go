package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// history is a read-only viewer over the message log: it scans the
// badger keyspace of one room (or all rooms) and renders the
// conversation as a table, without going through the server.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	room := flag.String("room", "", "Room to inspect (empty scans every room)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	prefix := "msg:"
	if *room != "" {
		prefix = fmt.Sprintf("msg:%s:", *room)
	}

	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("Message log — prefix %q", prefix))
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "ID", "Room", "Author", "At", "Body"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(v, &dm); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}
				table.Append([]string{
					string(item.Key()),
					fmt.Sprintf("%d", dm.ID),
					dm.Room,
					dm.Author,
					time.Unix(0, dm.At).UTC().Format("2006-01-02 15:04:05"),
					dm.Body,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// diskMessage mirrors the stored value layout of the message repository.
type diskMessage struct {
	ID     uint64 `json:"id"`
	Room   string `json:"room"`
	Author string `json:"author"`
	Body   string `json:"body"`
	At     int64  `json:"at"`
}

func openDB(path string) (*badger.DB, error) {
	// BypassLockGuard allows opening while the server holds the lock.
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
