package relevance

import "errors"

var errVectorCount = errors.New("embedding count does not match input count")
