package model

import (
	"encoding/gob"
	"io"

	"github.com/cockroachdb/errors"
)

// SaveModelToWriter はモデルをgob形式でio.Writerに保存する。
// ファイルへの保存は models.SaveFile を使う。
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
