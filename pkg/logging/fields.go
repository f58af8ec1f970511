package logging

import "github.com/sirupsen/logrus"

func RequestFields(requestID, method, uri, remoteAddr string) logrus.Fields {
	return logrus.Fields{
		"request_id":  requestID,
		"method":      method,
		"uri":         uri,
		"remote_addr": remoteAddr,
	}
}

func ImageFields(key string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"key":       key,
		"cache_hit": cacheHit,
	}
}
