package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docvault/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := def.CreateArgs()
	if err != nil {
		return fmt.Errorf("index definition: %w", err)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return db.Wrap(db.OpCreateIndex, def.Name, err)
	}
	return nil
}

// DropIndex removes an FT index by name.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return db.Wrap(db.OpDropIndex, name, err)
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, db.Wrap(db.OpIndexInfo, name, err)
	}
	return true, nil
}

// IndexAttributes returns the attribute names of an index, parsed from FT.INFO.
func (s *Store) IndexAttributes(ctx context.Context, name string) ([]string, error) {
	attrs, err := s.indexInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if n := a.name(); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// IndexVectorDim returns the DIM of a vector attribute, or 0 when the index
// has no such attribute or it carries no dimension.
func (s *Store) IndexVectorDim(ctx context.Context, name, attribute string) (int, error) {
	attrs, err := s.indexInfo(ctx, name)
	if err != nil {
		return 0, err
	}
	for _, a := range attrs {
		if a.name() != attribute {
			continue
		}
		dim, err := strconv.Atoi(a["dim"])
		if err != nil {
			return 0, nil
		}
		return dim, nil
	}
	return 0, nil
}

func (s *Store) indexInfo(ctx context.Context, name string) ([]infoAttribute, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return nil, db.ErrIndexNotFound
		}
		return nil, db.Wrap(db.OpIndexInfo, name, err)
	}
	return parseInfoAttributes(raw), nil
}

// infoAttribute is one entry of the FT.INFO attributes list, keys lowercased.
type infoAttribute map[string]string

func (a infoAttribute) name() string {
	if n := a["attribute"]; n != "" {
		return n
	}
	return a["identifier"]
}

// parseInfoAttributes walks the RESP2 FT.INFO reply:
// [..., "attributes", [[identifier, x, attribute, y, type, VECTOR, dim, 3, ...], ...], ...].
func parseInfoAttributes(raw []rueidis.RedisMessage) []infoAttribute {
	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil || key != "attributes" {
			continue
		}
		list, err := raw[i+1].ToArray()
		if err != nil {
			return nil
		}
		out := make([]infoAttribute, 0, len(list))
		for _, entry := range list {
			pairs, err := entry.ToArray()
			if err != nil {
				continue
			}
			out = append(out, parseAttribute(pairs))
		}
		return out
	}
	return nil
}

func parseAttribute(pairs []rueidis.RedisMessage) infoAttribute {
	attr := make(infoAttribute, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		k, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		if v, ok := scalar(pairs[j+1]); ok {
			attr[strings.ToLower(k)] = v
		}
	}
	return attr
}

// scalar renders a string or integer reply element; nested arrays are skipped.
func scalar(m rueidis.RedisMessage) (string, bool) {
	if v, err := m.ToString(); err == nil {
		return v, true
	}
	if n, err := m.ToInt64(); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}
