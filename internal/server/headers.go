package server

import "net/http"

// addHeaders appends every value of src to dst
func addHeaders(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// replaceHeaders overwrites dst's values for every key present in src.
// Hop-by-hop headers are never touched.
func replaceHeaders(dst, src http.Header) {
	for k, values := range src {
		switch http.CanonicalHeaderKey(k) {
		case "Connection", "Upgrade", "Host",
			"Keep-Alive", "Transfer-Encoding", "Te", "Trailer":
			continue
		}
		dst.Del(k)
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
