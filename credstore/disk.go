package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// DiskConfig configures a [Disk] backend.
type DiskConfig struct {
	Dir     string
	Profile string
}

// Disk stores one JSON file per profile under Dir. Files are created 0600 and the
// directory 0700.
type Disk struct {
	dv  *diskv.Diskv
	key string
}

// NewDisk returns a Disk backend rooted at cfg.Dir.
func NewDisk(cfg DiskConfig) (*Disk, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("credstore: disk dir required")
	}

	// All files live directly in the base dir.
	flatTransform := func(string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     cfg.Dir,
		Transform:    flatTransform,
		CacheSizeMax: 0,
		PathPerm:     0o700,
		FilePerm:     0o600,
	})

	return &Disk{
		dv:  dv,
		key: profileOrDefault(cfg.Profile) + ".json",
	}, nil
}

func (d *Disk) Load(context.Context) (Record, error) {
	if !d.dv.Has(d.key) {
		return Record{}, ErrNotFound
	}
	b, err := d.dv.Read(d.key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("credstore: read %s: %w", d.key, err)
	}

	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("credstore: decode %s: %w", d.key, err)
	}
	if rec.IsZero() {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (d *Disk) Save(ctx context.Context, rec Record) error {
	if rec.IsZero() {
		return d.Clear(ctx)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := d.dv.Write(d.key, b); err != nil {
		return fmt.Errorf("credstore: write %s: %w", d.key, err)
	}
	return nil
}

func (d *Disk) Clear(context.Context) error {
	if !d.dv.Has(d.key) {
		return nil
	}
	if err := d.dv.Erase(d.key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credstore: erase %s: %w", d.key, err)
	}
	return nil
}
