package cache

import "encoding/json"

// Codec 把任意调用方定义的值编码为文本形式，缓存本身不关心值的结构。
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte, out any) error
}

// JSONCodec 是默认编码，写入紧凑 JSON。
type JSONCodec struct{}

func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}
