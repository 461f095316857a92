package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Ext is the file extension of every record batch.
const Ext = ".batch"

const (
	HaulPrefix     = "haul/"
	CatchPrefix    = "catch/"
	SpeciesPrefix  = "species/"
	JoinedPrefix   = "joined/"
	ShardPrefix    = "index_sharded/"
	IndexPrefix    = "index/"
	ManifestPrefix = "index_shards/"

	MainIndexPath = IndexPrefix + "main" + Ext
)

func HaulPath(k Key) string { return HaulPrefix + k.String() + Ext }

func JoinedPath(k Key) string { return JoinedPrefix + k.String() + Ext }

// CatchPath is keyed by haul number alone.
func CatchPath(haul int64) string {
	return CatchPrefix + strconv.FormatInt(haul, 10) + Ext
}

func ShardPath(field string, batch int64) string {
	return fmt.Sprintf("%s%s_%d%s", ShardPrefix, field, batch, Ext)
}

func IndexPath(field string) string { return IndexPrefix + field + Ext }

// ManifestPath holds the newline-separated batch ids of a field's shards.
func ManifestPath(field string) string { return ManifestPrefix + field + ".txt" }

// IsBatch reports whether p names a record batch, ignoring stray objects
// such as directory markers.
func IsBatch(p string) bool {
	return strings.HasSuffix(p, Ext)
}
