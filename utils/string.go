package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"strconv"
	"strings"
)

// Compress gzips the input and returns it base64 encoded for storage in BoltDB.
func Compress(input string) (string, error) {
	var buf bytes.Buffer
	gzipWriter, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := gzipWriter.Write([]byte(input)); err != nil {
		return "", err
	}
	if err := gzipWriter.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress reverses Compress.
func Decompress(input string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", err
	}
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer gzipReader.Close()
	result, err := io.ReadAll(gzipReader)
	if err != nil {
		return "", err
	}
	return string(result), nil
}

// NormalizeQuery lowercases, trims and collapses inner whitespace so that
// "  Song   Name " and "song name" produce the same cache key.
func NormalizeQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// LyricsCacheKey builds the cache key for a track lookup.
// Empty album and duration are omitted rather than left as trailing spaces.
func LyricsCacheKey(song, artist, album string, durationSecs int) string {
	parts := []string{NormalizeQuery(song), NormalizeQuery(artist)}
	if a := NormalizeQuery(album); a != "" {
		parts = append(parts, a)
	}
	key := "lyrics:" + strings.Join(parts, " ")
	if durationSecs > 0 {
		key += " " + strconv.Itoa(durationSecs) + "s"
	}
	return key
}

// NegativeCacheKey prefixes a lyrics key for the "no lyrics found" cache.
func NegativeCacheKey(key string) string {
	return "no_lyrics:" + key
}
