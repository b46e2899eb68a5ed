package badger

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hinata-sys/hinata/core"
	"github.com/hinata-sys/hinata/storage"
)

// PacketRepository implements storage.PacketRepository for BadgerDB.
type PacketRepository struct {
	backend *Backend
}

var _ storage.PacketRepository = (*PacketRepository)(nil)

// NewPacketRepository creates a new PacketRepository.
func NewPacketRepository(backend *Backend) (*PacketRepository, error) {
	return &PacketRepository{
		backend: backend,
	}, nil
}

// Close releases resources. PacketRepository has no resources to release.
func (r *PacketRepository) Close() error {
	return nil
}

// StorePacket validates and stores a packet with all secondary indexes.
func (r *PacketRepository) StorePacket(ctx context.Context, packet *core.Packet) error {
	if err := core.ValidatePacket(packet); err != nil {
		return err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makePacketKey(packet.ID())

		existing, err := readPacket(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		packet.InsertedAt = stampNow()
		packet.UpdatedAt = packet.InsertedAt

		if err := tx.Set(key, storage.MarshalPacket(packet)); err != nil {
			return err
		}
		if err := writePacketIndexes(tx, packet); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventPacketStored, packet.ID())
	}
	return err
}

// GetPacket retrieves a single packet by ID.
func (r *PacketRepository) GetPacket(ctx context.Context, id string) (*core.Packet, error) {
	var result *core.Packet
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPacket(tx, makePacketKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdatePacket applies a partial update, pruning stale index entries and
// writing new ones in the same transaction.
func (r *PacketRepository) UpdatePacket(ctx context.Context, id string, patch *core.PacketPatch) (*core.Packet, error) {
	var result *core.Packet
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makePacketKey(id)
		old, err := readPacket(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		updated := *old
		patch.Apply(&updated)
		updated.Metadata.PacketID = old.Metadata.PacketID
		updated.UpdatedAt = stampNow()

		if err := core.ValidatePacket(&updated); err != nil {
			return err
		}

		if err := deletePacketIndexes(tx, old); err != nil {
			return err
		}
		if err := tx.Set(key, storage.MarshalPacket(&updated)); err != nil {
			return err
		}
		if err := writePacketIndexes(tx, &updated); err != nil {
			return err
		}

		result = &updated
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventPacketUpdated, id)
	}
	return result, err
}

// DeletePacket removes a packet and all of its index entries.
func (r *PacketRepository) DeletePacket(ctx context.Context, id string) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makePacketKey(id)
		packet, err := readPacket(tx, key)
		if err != nil {
			return err
		}
		if packet == nil {
			return storage.ErrNotFound
		}

		if err := deletePacketIndexes(tx, packet); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err == nil {
		r.backend.notify(storage.EventPacketDeleted, id)
	}
	return err
}

// GetPacketsByUser retrieves a user's packets, newest first.
func (r *PacketRepository) GetPacketsByUser(ctx context.Context, userID string, page storage.Pagination) ([]*core.Packet, error) {
	return r.collectByIndex(packetUserPrefix+":"+userID+":", page)
}

// GetPacketsBySource retrieves packets captured through a source, newest
// first.
func (r *PacketRepository) GetPacketsBySource(ctx context.Context, source core.CaptureSource, page storage.Pagination) ([]*core.Packet, error) {
	prefix := string(makePacketSourceKey(source, ""))
	return r.collectByIndex(prefix, page)
}

// GetPacketsByTag retrieves packets carrying the tag, newest first.
func (r *PacketRepository) GetPacketsByTag(ctx context.Context, tag string, page storage.Pagination) ([]*core.Packet, error) {
	normalized := core.NormalizeTagName(tag)
	if normalized == "" {
		return nil, storage.ErrInvalidQuery
	}
	return r.collectByIndex(packetTagPrefix+":"+normalized+":", page)
}

// GetPacketsByTimeRange retrieves packets where start <= capture < end,
// ordered by capture time ascending.
func (r *PacketRepository) GetPacketsByTimeRange(ctx context.Context, start, end time.Time, page storage.Pagination) ([]*core.Packet, error) {
	if end.Before(start) {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Packet
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(packetTimePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		endKey := makePartialPacketTimeKey(end)
		for iter.Seek(makePartialPacketTimeKey(start)); iter.Valid(); iter.Next() {
			item := iter.Item()
			if bytes.Compare(item.Key(), endKey) >= 0 {
				break
			}
			packet, err := readIndexedPacket(tx, item)
			if err != nil {
				return err
			}
			if packet != nil {
				results = append(results, packet)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	lo, hi := page.Clamp(len(results))
	return results[lo:hi], nil
}

// CountPackets returns the total number of stored packets.
func (r *PacketRepository) CountPackets(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(packetPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// RebuildIndexes drops all packet secondary indexes and rebuilds them
// from the primary records.
func (r *PacketRepository) RebuildIndexes(ctx context.Context) error {
	indexPrefixes := []string{
		packetUserPrefix + ":",
		packetSourcePrefix + ":",
		packetTagPrefix + ":",
		packetTokenPrefix + ":",
		packetTimePrefix + ":",
	}

	// Drop phase. Keys are snapshotted first, a badger iterator must not
	// observe its own deletes.
	for _, prefix := range indexPrefixes {
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			var stale [][]byte
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				stale = append(stale, iter.Item().KeyCopy(nil))
			}
			iter.Close()

			for _, key := range stale {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}

	// Rebuild phase.
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(packetPrefix + ":")
		iter := tx.NewIterator(opts)

		var packets []*core.Packet
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var packet *core.Packet
			err := iter.Item().Value(func(val []byte) error {
				var err error
				packet, err = storage.UnmarshalPacket(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			packets = append(packets, packet)
		}
		iter.Close()

		for _, packet := range packets {
			if err := writePacketIndexes(tx, packet); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// collectByIndex scans an index prefix, loads the referenced packets,
// and returns them newest first.
func (r *PacketRepository) collectByIndex(prefix string, page storage.Pagination) ([]*core.Packet, error) {
	var results []*core.Packet
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			packet, err := readIndexedPacket(tx, iter.Item())
			if err != nil {
				return err
			}
			if packet != nil {
				results = append(results, packet)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortPacketsNewestFirst(results)
	lo, hi := page.Clamp(len(results))
	return results[lo:hi], nil
}

func sortPacketsNewestFirst(packets []*core.Packet) {
	slices.SortFunc(packets, func(a, b *core.Packet) int {
		return b.Metadata.CaptureTimestamp.Compare(a.Metadata.CaptureTimestamp)
	})
}

// readIndexedPacket resolves an index entry (value holds the packet ID)
// to the full packet. Returns nil for dangling entries.
func readIndexedPacket(tx *badger.Txn, item *badger.Item) (*core.Packet, error) {
	var id string
	if err := item.Value(func(val []byte) error {
		id = string(val)
		return nil
	}); err != nil {
		return nil, err
	}
	return readPacket(tx, makePacketKey(id))
}

// writePacketIndexes writes every secondary index entry for a packet.
// Index values hold the packet ID.
func writePacketIndexes(tx *badger.Txn, p *core.Packet) error {
	id := p.ID()
	idVal := []byte(id)

	if err := tx.Set(makePacketUserKey(p.Payload.UserID, id), idVal); err != nil {
		return err
	}
	if err := tx.Set(makePacketSourceKey(p.Metadata.CaptureSource, id), idVal); err != nil {
		return err
	}
	if err := tx.Set(makePacketTimeKey(p.Metadata.CaptureTimestamp, id), idVal); err != nil {
		return err
	}
	for _, tag := range p.Payload.Tags {
		normalized := core.NormalizeTagName(tag)
		if normalized == "" {
			continue
		}
		if err := tx.Set(makePacketTagKey(normalized, id), idVal); err != nil {
			return err
		}
	}
	for _, token := range packetTokens(p) {
		if err := tx.Set(makePacketTokenKey(token, id), idVal); err != nil {
			return err
		}
	}
	return nil
}

// deletePacketIndexes removes every secondary index entry for a packet.
func deletePacketIndexes(tx *badger.Txn, p *core.Packet) error {
	id := p.ID()

	if err := tx.Delete(makePacketUserKey(p.Payload.UserID, id)); err != nil {
		return err
	}
	if err := tx.Delete(makePacketSourceKey(p.Metadata.CaptureSource, id)); err != nil {
		return err
	}
	if err := tx.Delete(makePacketTimeKey(p.Metadata.CaptureTimestamp, id)); err != nil {
		return err
	}
	for _, tag := range p.Payload.Tags {
		normalized := core.NormalizeTagName(tag)
		if normalized == "" {
			continue
		}
		if err := tx.Delete(makePacketTagKey(normalized, id)); err != nil {
			return err
		}
	}
	for _, token := range packetTokens(p) {
		if err := tx.Delete(makePacketTokenKey(token, id)); err != nil {
			return err
		}
	}
	return nil
}

// packetTokens returns the deduplicated token set of the packet's
// searchable text.
func packetTokens(p *core.Packet) []string {
	tokens := core.Tokenize(p.SearchBlob())
	slices.Sort(tokens)
	return slices.Compact(tokens)
}

// readPacket reads a packet from the transaction. Returns nil, nil when
// the key doesn't exist.
func readPacket(tx *badger.Txn, key []byte) (*core.Packet, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var packet *core.Packet
	err = item.Value(func(val []byte) error {
		var err error
		packet, err = storage.UnmarshalPacket(val)
		return err
	})
	return packet, err
}
