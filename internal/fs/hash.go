package fs

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sailbuild/sail/internal/syspath"
)

// HashObject returns a stable hex-encoded SHA-256 digest of i's default
// string representation. Used for small config values; file contents are
// hashed with HashFile or GitLikeHashFile instead.
func HashObject(i interface{}) (string, error) {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v", i)))
	return hex.EncodeToString(sum[:]), nil
}

// HashFile returns the hex-encoded SHA-256 digest of a file's contents.
func HashFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// GitLikeHashFile mimics how git computes the SHA-1 object id for a file
// ("blob" framing) without shelling out to git; used as the manual-hashing
// fallback when git itself isn't available.
func GitLikeHashFile(path syspath.AbsoluteSystemPath) (string, error) {
	file, err := os.Open(path.ToString())
	if err != nil {
		return "", err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", err
	}
	hash := sha1.New()
	hash.Write([]byte("blob"))
	hash.Write([]byte(" "))
	hash.Write([]byte(strconv.FormatInt(stat.Size(), 10)))
	hash.Write([]byte{0})

	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
