// Package peerdb keeps the address book and the ban list of a node across
// restarts in a bbolt file inside the data directory.
package peerdb

import (
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/niubaoshu/gotiny"
	bolt "go.etcd.io/bbolt"

	"github.com/nb-coin/new-bitcoin/pkg/addrmgr"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// FileName is the name of the database inside the data directory.
const FileName = "peers.db"

var (
	addressesBucket = []byte("addresses")
	bansBucket      = []byte("bans")
)

// addressRecord is the stored form of an address book entry.
type addressRecord struct {
	IP          []byte
	Port        uint16
	Timestamp   int64
	Services    uint64
	HasServices bool
}

// banRecord is the stored form of a ban, keyed by IP.
type banRecord struct {
	At int64
}

// DB is an open peer database.
type DB struct {
	db   *bolt.DB
	path string
}

// Open creates the data directory if needed and opens or creates the database
// in it.
func Open(dataDir string) (d *DB, e error) {
	if e = os.MkdirAll(dataDir, 0700); E.Chk(e) {
		return
	}
	path := filepath.Join(dataDir, FileName)
	var db *bolt.DB
	if db, e = bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second}); E.Chk(e) {
		return
	}
	if e = db.Update(func(tx *bolt.Tx) (e error) {
		for _, b := range [][]byte{addressesBucket, bansBucket} {
			if _, e = tx.CreateBucketIfNotExists(b); e != nil {
				return
			}
		}
		return
	}); E.Chk(e) {
		_ = db.Close()
		return
	}
	D.Ln("opened peer database", path)
	return &DB{db: db, path: path}, nil
}

// Path is the file the database lives in.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database file.
func (d *DB) Close() error {
	return d.db.Close()
}

// replaceBucket empties bucket name and fills it from put.
func (d *DB) replaceBucket(name []byte, put func(b *bolt.Bucket) error) error {
	return d.db.Update(func(tx *bolt.Tx) (e error) {
		if e = tx.DeleteBucket(name); e != nil && e != bolt.ErrBucketNotFound {
			return
		}
		var b *bolt.Bucket
		if b, e = tx.CreateBucket(name); e != nil {
			return
		}
		return put(b)
	})
}

// SaveAddresses replaces the stored address book with list.
func (d *DB) SaveAddresses(list []addrmgr.KnownAddress) (e error) {
	e = d.replaceBucket(addressesBucket, func(b *bolt.Bucket) (e error) {
		for i := range list {
			ka := &list[i]
			rec := addressRecord{
				IP:          ka.IP.To4(),
				Port:        ka.Port,
				Timestamp:   ka.Timestamp.Unix(),
				Services:    uint64(ka.Services),
				HasServices: ka.HasServices,
			}
			if e = b.Put([]byte(ka.Key()), gotiny.Marshal(&rec)); e != nil {
				return
			}
		}
		return
	})
	if !E.Chk(e) {
		T.Ln("saved", len(list), "addresses")
	}
	return
}

// LoadAddresses returns the stored address book. Records that do not decode
// are skipped.
func (d *DB) LoadAddresses() (list []addrmgr.KnownAddress, e error) {
	e = d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(addressesBucket).ForEach(func(k, v []byte) (e error) {
			var rec addressRecord
			if !decode(v, &rec) || len(rec.IP) != net.IPv4len {
				W.Ln("skipping unreadable address record", string(k))
				return
			}
			list = append(list, addrmgr.KnownAddress{
				IP:          net.IP(rec.IP),
				Port:        rec.Port,
				Timestamp:   time.Unix(rec.Timestamp, 0),
				Services:    wire.ServiceFlag(rec.Services),
				HasServices: rec.HasServices,
			})
			return
		})
	})
	return
}

// SaveBans replaces the stored ban list with bans.
func (d *DB) SaveBans(bans map[string]time.Time) (e error) {
	e = d.replaceBucket(bansBucket, func(b *bolt.Bucket) (e error) {
		for ip, at := range bans {
			rec := banRecord{At: at.Unix()}
			if e = b.Put([]byte(ip), gotiny.Marshal(&rec)); e != nil {
				return
			}
		}
		return
	})
	E.Chk(e)
	return
}

// LoadBans returns the stored ban list.
func (d *DB) LoadBans() (bans map[string]time.Time, e error) {
	bans = make(map[string]time.Time)
	e = d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bansBucket).ForEach(func(k, v []byte) error {
			var rec banRecord
			if !decode(v, &rec) {
				W.Ln("skipping unreadable ban record", string(k))
				return nil
			}
			bans[string(k)] = time.Unix(rec.At, 0)
			return nil
		})
	})
	return
}

// decode unmarshals a record, turning a decoder panic on corrupt bytes into a
// false return.
func decode(v []byte, rec interface{}) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return gotiny.Unmarshal(v, rec) == len(v)
}
