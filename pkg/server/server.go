// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package server assembles a metadata node from a base.Config: a storage
// engine, the catalog persisted in it, the table descriptor cache and the
// row layer working on top of them.
package server

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/tablemeta/pkg/base"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/catalog/tablecache"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/row"
	"github.com/cockroachdb/tablemeta/pkg/rowenc"
	"github.com/cockroachdb/tablemeta/pkg/storage"
	"github.com/cockroachdb/tablemeta/pkg/util/log"
	"github.com/cockroachdb/tablemeta/pkg/util/syncutil"
)

// Server is a metadata node. Catalog mutations made through the Server
// are persisted to the engine and keep the descriptor cache up to date;
// the stored data of dropped tables and indexes is cleared.
type Server struct {
	cfg    base.Config
	eng    storage.Engine
	cat    *catalog.Catalog
	cache  *tablecache.Cache
	rowCfg row.Config

	// checkpointMu serializes the writes of the catalog snapshot so an
	// older snapshot never overwrites a newer one.
	checkpointMu syncutil.Mutex
}

// NewServer opens the configured engine and loads the catalog persisted in
// it, if any.
func NewServer(ctx context.Context, cfg base.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.SetVerbosity(cfg.Log.Verbosity)
	ctx = logtags.AddTag(ctx, "server", nil)

	eng, err := OpenEngine(cfg.Storage)
	if err != nil {
		return nil, err
	}
	catCfg := catalog.Config{
		DefaultLimits:   defaultLimits(cfg.Catalog.DefaultLimits),
		ChangeRetention: cfg.Catalog.ChangeRetention,
	}
	cat, err := loadCatalog(ctx, eng, catCfg)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	s := &Server{
		cfg: cfg,
		eng: eng,
		cat: cat,
		cache: tablecache.New(tablecache.Config{
			Capacity: cfg.Cache.Capacity,
			TTL:      cfg.Cache.TTL,
		}),
		rowCfg: row.Config{
			MaxIndexKeysPerRow: cfg.Index.MaxKeysPerRow,
			BatchSize:          cfg.Index.ScanBatchSize,
			Locks:              row.NewRowLocks(),
		},
	}
	log.Infof(ctx, "catalog %s at %d on %s engine", cat.ID(), cat.SeqNum(), cfg.Storage.Engine)
	return s, nil
}

// OpenEngine opens the storage engine cfg selects.
func OpenEngine(cfg base.StorageConfig) (storage.Engine, error) {
	switch cfg.Engine {
	case base.EngineInMem:
		return storage.NewInMem(), nil
	case base.EnginePebble:
		return storage.NewPebble(storage.PebbleConfig{Dir: cfg.Dir, Sync: cfg.Sync})
	}
	return nil, errors.Newf("unknown engine %q", cfg.Engine)
}

func defaultLimits(l base.LimitsConfig) descpb.Limits {
	return descpb.Limits{
		ReadUnits:      l.ReadUnits,
		WriteUnits:     l.WriteUnits,
		StorageGB:      l.StorageGB,
		MaxIndexes:     l.MaxIndexes,
		MaxChildTables: l.MaxChildTables,
		IndexKeySize:   int(l.IndexKeySize),
	}
}

// ReadCatalogSnapshot returns the catalog snapshot persisted in r, or nil
// if there is none.
func ReadCatalogSnapshot(r storage.Reader) (*descpb.Snapshot, error) {
	data, err := r.Get(keys.CatalogSnapshotKey)
	if err != nil || data == nil {
		return nil, err
	}
	snap, err := descpb.UnmarshalSnapshot(data)
	if err != nil {
		return nil, errors.Wrap(err, "reading persisted catalog")
	}
	return snap, nil
}

func loadCatalog(ctx context.Context, r storage.Reader, cfg catalog.Config) (*catalog.Catalog, error) {
	snap, err := ReadCatalogSnapshot(r)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return catalog.New(cfg), nil
	}
	cfg.CatalogID = snap.CatalogID
	return catalog.NewFromSnapshot(ctx, cfg, snap)
}

// Catalog returns the node's catalog. Mutations made on it directly are
// neither persisted nor reflected in the cache until Checkpoint and
// Invalidate are called.
func (s *Server) Catalog() *catalog.Catalog { return s.cat }

// Cache returns the descriptor cache.
func (s *Server) Cache() *tablecache.Cache { return s.cache }

// Engine returns the storage engine.
func (s *Server) Engine() storage.Engine { return s.eng }

// Checkpoint persists the current catalog snapshot.
func (s *Server) Checkpoint(ctx context.Context) error {
	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()
	snap := s.cat.CurrentSnapshot()
	b := s.eng.NewBatch()
	defer b.Close()
	if err := b.Put(keys.CatalogSnapshotKey, descpb.MarshalSnapshot(snap)); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return errors.Wrap(err, "persisting catalog")
	}
	log.VEventf(ctx, 2, "persisted catalog at %d", snap.SeqNum)
	return nil
}

// Invalidate drops cached descriptors of id older than seq.
func (s *Server) Invalidate(ctx context.Context, id descpb.ID, seq descpb.SeqNum) {
	s.cache.OnCatalogChange(ctx, id, seq)
}

// refresh reads a table after a mutation, validates the cache up to its
// sequence number and caches it.
func (s *Server) refresh(ctx context.Context, id descpb.ID) (*descpb.TableDescriptor, error) {
	desc, err := s.cat.GetTableByID(id)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id, desc.SeqNum)
	s.cache.Put(desc)
	return desc, nil
}

// Table returns a table through the cache.
func (s *Server) Table(ctx context.Context, id descpb.ID) (*descpb.TableDescriptor, error) {
	return s.cache.Acquire(ctx, id, tablecache.CatalogFetcher(s.cat))
}

// LookupTable returns a table by name through the cache.
func (s *Server) LookupTable(
	ctx context.Context, namespace, name string,
) (*descpb.TableDescriptor, error) {
	if desc := s.cache.Get(namespace, name); desc != nil {
		return desc, nil
	}
	desc, err := s.cat.GetTable(namespace, name)
	if err != nil {
		return nil, err
	}
	s.cache.Put(desc)
	return desc, nil
}

// CreateTable adds a table to the catalog, see catalog.Catalog.AddTable.
func (s *Server) CreateTable(
	ctx context.Context, desc *descpb.TableDescriptor,
) (*descpb.TableDescriptor, error) {
	created, err := s.cat.AddTable(ctx, desc)
	if err != nil {
		return nil, err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return nil, err
	}
	if created.ParentID != descpb.InvalidID {
		if _, err := s.refresh(ctx, created.ParentID); err != nil {
			return nil, err
		}
	}
	s.cache.Put(created)
	return created, nil
}

// EvolveTable changes a table's schema, see catalog.Catalog.EvolveTable.
func (s *Server) EvolveTable(
	ctx context.Context, desc *descpb.TableDescriptor,
) (*descpb.TableDescriptor, error) {
	if _, err := s.cat.EvolveTable(ctx, desc); err != nil {
		return nil, err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return nil, err
	}
	return s.refresh(ctx, desc.ID)
}

// DropTable drops a table, and with cascade its descendants, and clears
// their rows.
func (s *Server) DropTable(ctx context.Context, id descpb.ID, cascade bool) error {
	prefix, err := s.cat.TablePrefix(id)
	if err != nil {
		return err
	}
	ids, err := s.subtree(id)
	if err != nil {
		return err
	}
	desc, err := s.cat.GetTableByID(id)
	if err != nil {
		return err
	}
	if err := s.cat.DropTable(ctx, id, cascade); err != nil {
		return err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return err
	}
	seq := s.cat.SeqNum()
	for _, id := range ids {
		s.Invalidate(ctx, id, seq)
	}
	if desc.ParentID != descpb.InvalidID {
		if _, err := s.refresh(ctx, desc.ParentID); err != nil {
			return err
		}
	}
	// Child table keys extend the table's prefix, so one span covers the
	// whole subtree.
	n, err := clearSpan(ctx, s.eng, prefix, s.rowCfg.BatchSize)
	if err != nil {
		return errors.Wrapf(err, "clearing data of table %d", id)
	}
	log.Infof(ctx, "dropped %d tables, cleared %d keys", len(ids), n)
	return nil
}

// subtree returns id and the IDs of its descendants.
func (s *Server) subtree(id descpb.ID) ([]descpb.ID, error) {
	desc, err := s.cat.GetTableByID(id)
	if err != nil {
		return nil, err
	}
	ids := []descpb.ID{id}
	for _, child := range desc.Children {
		sub, err := s.subtree(child)
		if err != nil {
			return nil, err
		}
		ids = append(ids, sub...)
	}
	return ids, nil
}

// BuildIndex adds a secondary index and takes it through its lifecycle:
// CREATING, then POPULATING while existing rows are backfilled, then
// READY. Writers obtained before the index became POPULATING do not
// maintain it and must be replaced. If the build fails after the index was
// added, the index is dropped again and its entries cleared before the
// error is returned.
func (s *Server) BuildIndex(
	ctx context.Context, tableID descpb.ID, idx descpb.IndexDescriptor,
) (*descpb.IndexDescriptor, error) {
	ctx = logtags.AddTag(ctx, "index", idx.Name)
	added, err := s.cat.AddIndex(ctx, tableID, idx)
	if err != nil {
		return nil, err
	}
	res, err := s.buildIndex(ctx, tableID, added.Name)
	if err != nil {
		if abortErr := s.abortIndexBuild(ctx, tableID, added); abortErr != nil {
			log.Errorf(ctx, "dropping index %s after a failed build: %v", added.Name, abortErr)
			return nil, errors.WithSecondaryError(err, abortErr)
		}
		log.Warningf(ctx, "index %s not built: %v", added.Name, err)
		return nil, err
	}
	return res, nil
}

func (s *Server) buildIndex(
	ctx context.Context, tableID descpb.ID, name string,
) (*descpb.IndexDescriptor, error) {
	if err := s.cat.UpdateIndexStatus(ctx, tableID, name, descpb.IndexStatusPopulating); err != nil {
		return nil, err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return nil, err
	}
	desc, err := s.refresh(ctx, tableID)
	if err != nil {
		return nil, err
	}
	prefix, err := s.cat.TablePrefix(tableID)
	if err != nil {
		return nil, err
	}
	if _, err := row.Backfill(ctx, s.eng, desc, prefix, name, s.rowCfg); err != nil {
		return nil, errors.Wrapf(err, "backfilling index %q", name)
	}
	if err := s.cat.UpdateIndexStatus(ctx, tableID, name, descpb.IndexStatusReady); err != nil {
		return nil, err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return nil, err
	}
	if desc, err = s.refresh(ctx, tableID); err != nil {
		return nil, err
	}
	res, _ := desc.FindIndexByName(name)
	return res.Clone(), nil
}

// abortIndexBuild drops an index whose build failed, clears the entries
// the backfill wrote and persists the catalog.
func (s *Server) abortIndexBuild(
	ctx context.Context, tableID descpb.ID, idx *descpb.IndexDescriptor,
) error {
	if err := s.cat.DropIndex(ctx, tableID, idx.Name); err != nil {
		return err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return err
	}
	if _, err := s.refresh(ctx, tableID); err != nil {
		return err
	}
	prefix, err := s.cat.TablePrefix(tableID)
	if err != nil {
		return err
	}
	_, err = clearSpan(ctx, s.eng, rowenc.MakeIndexKeyPrefix(prefix, idx.ID), s.rowCfg.BatchSize)
	return err
}

// DropIndex drops a secondary index and clears its entries.
func (s *Server) DropIndex(ctx context.Context, tableID descpb.ID, name string) error {
	desc, err := s.cat.GetTableByID(tableID)
	if err != nil {
		return err
	}
	idx, ok := desc.FindIndexByName(name)
	if !ok {
		return errors.Wrapf(catalog.ErrIndexNotFound, "index %q of table %q", name, desc.Name)
	}
	prefix, err := s.cat.TablePrefix(tableID)
	if err != nil {
		return err
	}
	if err := s.cat.DropIndex(ctx, tableID, name); err != nil {
		return err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return err
	}
	if _, err := s.refresh(ctx, tableID); err != nil {
		return err
	}
	_, err = clearSpan(ctx, s.eng, rowenc.MakeIndexKeyPrefix(prefix, idx.ID), s.rowCfg.BatchSize)
	return err
}

// Writer returns a row writer for the current version of a table.
func (s *Server) Writer(ctx context.Context, tableID descpb.ID) (*row.Writer, error) {
	desc, prefix, err := s.tableAndPrefix(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return row.NewWriter(s.eng, desc, prefix, s.rowCfg)
}

// Fetcher returns a row fetcher for a table.
func (s *Server) Fetcher(ctx context.Context, tableID descpb.ID) (*row.Fetcher, error) {
	desc, prefix, err := s.tableAndPrefix(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return row.NewFetcher(s.eng, desc, prefix)
}

// IndexScanner returns a scanner over a READY index of a table. A zero
// batch size in opts takes the configured one.
func (s *Server) IndexScanner(
	ctx context.Context, tableID descpb.ID, index string, opts row.ScanOptions,
) (*row.IndexScanner, error) {
	desc, prefix, err := s.tableAndPrefix(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = s.rowCfg.BatchSize
	}
	return row.NewIndexScanner(s.eng, desc, prefix, index, opts)
}

func (s *Server) tableAndPrefix(
	ctx context.Context, tableID descpb.ID,
) (*descpb.TableDescriptor, []byte, error) {
	desc, err := s.Table(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	prefix, err := s.cat.TablePrefix(tableID)
	if err != nil {
		return nil, nil, err
	}
	return desc, prefix, nil
}

// Close persists the catalog and closes the engine.
func (s *Server) Close(ctx context.Context) error {
	err := s.Checkpoint(ctx)
	return errors.CombineErrors(err, s.eng.Close())
}

// clearSpan deletes every key under prefix, batchSize keys at a time, and
// returns the number of keys deleted.
func clearSpan(ctx context.Context, eng storage.Engine, prefix []byte, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = row.DefaultBatchSize
	}
	opts := storage.IterOptions{LowerBound: prefix, UpperBound: keys.PrefixEnd(prefix)}
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var toDelete [][]byte
		it, err := eng.NewIterator(opts)
		if err != nil {
			return total, err
		}
		for ok := it.First(); ok && len(toDelete) < batchSize; ok = it.Next() {
			toDelete = append(toDelete, append([]byte(nil), it.Key()...))
		}
		if err := it.Close(); err != nil {
			return total, err
		}
		if len(toDelete) == 0 {
			return total, nil
		}
		b := eng.NewBatch()
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				b.Close()
				return total, err
			}
		}
		err = b.Commit()
		b.Close()
		if err != nil {
			return total, err
		}
		total += len(toDelete)
	}
}
