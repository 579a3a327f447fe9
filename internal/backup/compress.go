package backup

import (
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/fileurl"

	"github.com/pkg/errors"
)

// ErrUnsupportedCompression 不支持的压缩方式
var ErrUnsupportedCompression = errors.New("unsupported compression method")

// ArchiveCompressor compresses one file in place and returns the final artifact path
// ArchiveCompressor 原地压缩单个文件，返回最终文件路径
type ArchiveCompressor interface {
	Compress(path string, method domain.Compression) (string, error)
}

type fileCompressor struct{}

// NewArchiveCompressor 创建压缩器
func NewArchiveCompressor() ArchiveCompressor {
	return fileCompressor{}
}

// CompressedPath returns where method would write the artifact for path
// CompressedPath 返回压缩后的文件路径
func CompressedPath(path string, method domain.Compression) (string, error) {
	switch method {
	case domain.CompressionNone:
		return path, nil
	case domain.CompressionZip:
		return fileurl.StripExt(path) + ".zip", nil
	case domain.CompressionGzip:
		return path + ".gz", nil
	}
	return "", errors.Wrapf(ErrUnsupportedCompression, "%q", method)
}

// Compress writes to a temp sibling, renames it into place and only then removes the source.
// The source is left untouched on any error.
// Compress 先写临时文件再改名，成功后才删除源文件；出错时源文件保持不变
func (fileCompressor) Compress(path string, method domain.Compression) (string, error) {
	dest, err := CompressedPath(path, method)
	if err != nil {
		return "", err
	}
	if method == domain.CompressionNone {
		return path, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open dump file")
	}
	defer src.Close()

	tmp := dest + ".tmp"
	if err := writeCompressed(src, tmp, filepath.Base(path), method); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "move compressed file into place")
	}

	// 目标文件已落盘，源文件删除失败不影响结果
	src.Close()
	if err := os.Remove(path); err != nil {
		return dest, errors.Wrap(err, "remove source after compression")
	}
	return dest, nil
}

func writeCompressed(src io.Reader, tmp, entryName string, method domain.Compression) (err error) {
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return errors.Wrap(err, "create compressed file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close compressed file")
		}
	}()

	switch method {
	case domain.CompressionZip:
		zw := zip.NewWriter(f)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entryName, Method: zip.Deflate})
		if err != nil {
			return errors.Wrap(err, "create zip entry")
		}
		if _, err := io.Copy(w, src); err != nil {
			return errors.Wrap(err, "write zip entry")
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "finish zip archive")
		}
	case domain.CompressionGzip:
		gw := gzip.NewWriter(f)
		gw.Name = entryName
		if _, err := io.Copy(gw, src); err != nil {
			return errors.Wrap(err, "write gzip stream")
		}
		if err := gw.Close(); err != nil {
			return errors.Wrap(err, "finish gzip stream")
		}
	}
	return f.Sync()
}

var _ ArchiveCompressor = fileCompressor{}
