package semidx

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/semidx/semidx/blobstore"
	"github.com/semidx/semidx/metadata"
	"github.com/semidx/semidx/persistence"
	"github.com/semidx/semidx/record"
)

// SaveSnapshot writes the engine state (records, shared vectors, fingerprint
// claims) to w in the checksummed binary snapshot format. The index itself is
// not serialized; LoadSnapshot rebuilds it.
func (e *Engine) SaveSnapshot(ctx context.Context, w io.Writer) error {
	if e.closed.Load() {
		return ErrClosed
	}

	// Materialize one consistent view before writing the count prefix.
	var recs []record.ContentRecord
	for rec, err := range e.store.Scan(ctx, nil) {
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}

	return persistence.Save(w, e.opts.snapshotCodec, func(pw *persistence.Writer) error {
		if err := pw.WriteString(e.embedder.Model()); err != nil {
			return err
		}
		if err := pw.WriteUint8(uint8(e.metric)); err != nil {
			return err
		}
		if err := pw.WriteUint32(uint32(len(recs))); err != nil {
			return err
		}

		for _, rec := range recs {
			if err := writeRecord(pw, rec); err != nil {
				return err
			}
		}

		return nil
	})
}

// LoadSnapshot restores records and fingerprint claims from a snapshot
// written by SaveSnapshot, then rebuilds the index. It expects a freshly
// built, empty engine configured with the same model and metric.
func (e *Engine) LoadSnapshot(ctx context.Context, r io.Reader) error {
	if e.closed.Load() {
		return ErrClosed
	}

	var recs []record.ContentRecord
	vectors := make(map[record.ID][]float32)

	err := persistence.Load(r, func(pr *persistence.Reader) error {
		model, err := pr.ReadString()
		if err != nil {
			return err
		}
		if model != e.embedder.Model() {
			return fmt.Errorf("snapshot model %q does not match engine model %q", model, e.embedder.Model())
		}

		if _, err := pr.ReadUint8(); err != nil { // metric, informational
			return err
		}

		count, err := pr.ReadUint32()
		if err != nil {
			return err
		}

		recs = make([]record.ContentRecord, 0, count)
		for range count {
			rec, err := readRecord(pr)
			if err != nil {
				return err
			}
			if rec.VectorOwner == rec.ID {
				vectors[rec.ID] = rec.Vector
			}
			recs = append(recs, rec)
		}

		return nil
	})
	if err != nil {
		return err
	}

	// Resolve shared vectors against their owners so sharing survives the
	// round trip.
	for i := range recs {
		if recs[i].VectorOwner == recs[i].ID {
			continue
		}
		vec, ok := vectors[recs[i].VectorOwner]
		if !ok {
			return fmt.Errorf("record %s references missing vector owner %s", recs[i].ID, recs[i].VectorOwner)
		}
		recs[i].Vector = vec
	}

	for _, rec := range recs {
		if rec.VectorOwner == rec.ID {
			e.claims.Restore(rec.Fingerprint, rec.ModelVersion, rec.ID, rec.Vector)
		}
		if err := e.store.Put(ctx, rec); err != nil {
			return translateError(err)
		}
		if rec.State.Active() {
			e.metaIdx.Add(string(rec.ID), rec.Metadata)
		}
	}

	_, err = e.manager.Rebuild(ctx)
	return err
}

// SaveSnapshotTo saves a snapshot as a named blob.
func (e *Engine) SaveSnapshotTo(ctx context.Context, bs blobstore.BlobStore, name string) error {
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := e.SaveSnapshot(ctx, pw)
		pw.CloseWithError(err)
		done <- err
	}()

	if err := bs.Put(ctx, name, pr); err != nil {
		pr.CloseWithError(err)
		<-done
		return err
	}

	return <-done
}

// LoadSnapshotFrom loads a snapshot from a named blob.
func (e *Engine) LoadSnapshotFrom(ctx context.Context, bs blobstore.BlobStore, name string) error {
	blob, err := bs.Get(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()

	return e.LoadSnapshot(ctx, blob)
}

func writeRecord(pw *persistence.Writer, rec record.ContentRecord) error {
	if err := pw.WriteString(string(rec.ID)); err != nil {
		return err
	}
	if err := pw.WriteString(rec.Fingerprint); err != nil {
		return err
	}
	if err := pw.WriteString(rec.ModelVersion); err != nil {
		return err
	}
	if err := pw.WriteString(string(rec.VectorOwner)); err != nil {
		return err
	}
	if err := pw.WriteUint8(uint8(rec.State)); err != nil {
		return err
	}
	if err := pw.WriteInt64(rec.CreatedAt.UnixNano()); err != nil {
		return err
	}
	if err := pw.WriteBool(rec.Truncated); err != nil {
		return err
	}

	if err := pw.WriteUint32(uint32(len(rec.Metadata))); err != nil {
		return err
	}
	for key, value := range rec.Metadata {
		if err := pw.WriteString(key); err != nil {
			return err
		}
		if err := writeValue(pw, value); err != nil {
			return err
		}
	}

	// Owners carry the vector bytes; sharers are restored by reference.
	if rec.VectorOwner == rec.ID {
		return pw.WriteFloat32Slice(rec.Vector)
	}

	return nil
}

func readRecord(pr *persistence.Reader) (record.ContentRecord, error) {
	var rec record.ContentRecord

	id, err := pr.ReadString()
	if err != nil {
		return rec, err
	}
	rec.ID = record.ID(id)

	if rec.Fingerprint, err = pr.ReadString(); err != nil {
		return rec, err
	}
	if rec.ModelVersion, err = pr.ReadString(); err != nil {
		return rec, err
	}

	owner, err := pr.ReadString()
	if err != nil {
		return rec, err
	}
	rec.VectorOwner = record.ID(owner)

	state, err := pr.ReadUint8()
	if err != nil {
		return rec, err
	}
	rec.State = record.State(state)

	nanos, err := pr.ReadInt64()
	if err != nil {
		return rec, err
	}
	rec.CreatedAt = time.Unix(0, nanos)

	if rec.Truncated, err = pr.ReadBool(); err != nil {
		return rec, err
	}

	nmeta, err := pr.ReadUint32()
	if err != nil {
		return rec, err
	}
	if nmeta > 0 {
		rec.Metadata = make(metadata.Document, nmeta)
		for range nmeta {
			key, err := pr.ReadString()
			if err != nil {
				return rec, err
			}
			value, err := readValue(pr)
			if err != nil {
				return rec, err
			}
			rec.Metadata[key] = value
		}
	}

	if rec.VectorOwner == rec.ID {
		if rec.Vector, err = pr.ReadFloat32Slice(); err != nil {
			return rec, err
		}
	}

	return rec, nil
}

func writeValue(pw *persistence.Writer, v metadata.Value) error {
	if err := pw.WriteUint8(uint8(v.Kind)); err != nil {
		return err
	}

	switch v.Kind {
	case metadata.KindInt:
		return pw.WriteInt64(v.I64)
	case metadata.KindFloat:
		return pw.WriteFloat64(v.F64)
	case metadata.KindString:
		return pw.WriteString(v.S)
	case metadata.KindBool:
		return pw.WriteBool(v.B)
	default:
		return nil
	}
}

func readValue(pr *persistence.Reader) (metadata.Value, error) {
	kind, err := pr.ReadUint8()
	if err != nil {
		return metadata.Value{}, err
	}

	v := metadata.Value{Kind: metadata.Kind(kind)}
	switch v.Kind {
	case metadata.KindInt:
		v.I64, err = pr.ReadInt64()
	case metadata.KindFloat:
		v.F64, err = pr.ReadFloat64()
	case metadata.KindString:
		v.S, err = pr.ReadString()
	case metadata.KindBool:
		v.B, err = pr.ReadBool()
	}

	return v, err
}
