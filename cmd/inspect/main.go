// Command inspect dumps a badger store of the relay or of a chat client.
package main

import (
	"ai-live-chat/domain"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/relay", "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan, e.g. messages:")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Who", "Detail", "At", "Expires"})
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

	now := time.Now()
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if strings.HasPrefix(key, "seq:") {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			table.Append(describe(key, value, item.ExpiresAt(), now))
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe turns one entry into a table row. Undecodable values are shown
// raw instead of stopping the dump.
func describe(key string, value []byte, expiresAt uint64, now time.Time) []string {
	expires := "-"
	if expiresAt > 0 {
		expires = time.Unix(int64(expiresAt), 0).Sub(now).Truncate(time.Second).String()
	}
	collection, id, _ := strings.Cut(key, ":")

	switch collection {
	case domain.MessagesCollection:
		msg, err := domain.DecodeMessage(id, value)
		if err != nil {
			return []string{key, "invalid", "", err.Error(), "", expires}
		}
		return []string{key, "message", msg.AuthorName, msg.Text, msg.CreatedAt.Format("15:04:05"), expires}
	case domain.PresenceCollection:
		record, err := domain.DecodePresence(id, value)
		if err != nil {
			return []string{key, "invalid", "", err.Error(), "", expires}
		}
		detail := fmt.Sprintf("last seen %s", record.LastSeen.Format("15:04:05"))
		return []string{key, "presence", shortID(record.SessionID), detail, record.JoinedAt.Format("15:04:05"), expires}
	case domain.IdentityKey:
		identity, err := domain.DecodeIdentity(value)
		if err != nil {
			return []string{key, "invalid", "", err.Error(), "", expires}
		}
		return []string{key, "identity", identity.DisplayName, identity.UserID, "", expires}
	default:
		return []string{key, "raw", "", string(value), "", expires}
	}
}

// shortID keeps the first 8 characters for readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
