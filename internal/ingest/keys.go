package ingest

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key prefixes. The external converter watches IncomingPrefix and writes its
// result under ParsedPrefix.
const (
	IncomingPrefix = "incoming/"
	ParsedPrefix   = "parsed/"
)

// Object metadata written with every upload.
const (
	MetaOriginalName  = "original-name"
	MetaAccountType   = "account-type"
	MetaAccountNumber = "account-number"
	MetaUploadedAt    = "uploaded-at"
)

// SourceKey builds incoming/{unixMillis}_{random}.{ext}. The timestamp is
// what status polls measure elapsed time against.
func SourceKey(uploadedAt time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	key := fmt.Sprintf("%s%d_%s", IncomingPrefix, uploadedAt.UnixMilli(), random)
	if ext != "" {
		key += "." + ext
	}
	return key
}

// ParseSourceKey recovers the upload time embedded in a source key.
func ParseSourceKey(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, IncomingPrefix) {
		return time.Time{}, false
	}
	name := strings.TrimPrefix(key, IncomingPrefix)
	if strings.Contains(name, "/") {
		return time.Time{}, false
	}
	stamp, _, ok := strings.Cut(name, "_")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

var nameCleaner = strings.NewReplacer(" ", "_", "(", "", ")", "")

// NormalizeName reduces an uploaded filename to the stem the external
// converter uses: extension dropped, spaces replaced, parentheses removed.
func NormalizeName(originalName string) string {
	base := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return nameCleaner.Replace(base)
}

// DerivedKey is the key the converted file appears under.
func DerivedKey(originalName string) string {
	return ParsedPrefix + NormalizeName(originalName) + ".qbo"
}

// DownloadName is the filename offered to the browser: the original
// upload's base name with a .qbo extension.
func DownloadName(originalName string) string {
	base := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base)) + ".qbo"
}
