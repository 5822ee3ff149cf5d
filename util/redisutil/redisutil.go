// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package redisutil

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisClientFromURL creates a new Redis client based on the provided URL.
// The URL scheme can be `redis`, `rediss` or `redis+sentinel`. An empty URL
// yields a nil client and no error.
//
//	redis+sentinel://<user>:<password>@<host1>:<port1>,<host2>:<port2>/<master_name>[/<db_number>]
func RedisClientFromURL(redisUrl string) (redis.UniversalClient, error) {
	if redisUrl == "" {
		return nil, nil
	}
	if strings.HasPrefix(redisUrl, sentinelScheme+"://") {
		opts, err := failoverOptions(redisUrl)
		if err != nil {
			return nil, err
		}
		return redis.NewFailoverClient(opts), nil
	}
	opts, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

const sentinelScheme = "redis+sentinel"

// splitSentinelHosts cuts the comma separated host list out of the URL
// authority, since url.Parse rejects a host like "h1:26379,h2".
func splitSentinelHosts(redisUrl string) (string, []string) {
	rest := strings.TrimPrefix(redisUrl, sentinelScheme+"://")
	authority, path := rest, ""
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority, path = rest[:i], rest[i:]
	}
	userinfo, hosts := "", authority
	if i := strings.LastIndex(authority, "@"); i >= 0 {
		userinfo, hosts = authority[:i+1], authority[i+1:]
	}
	return sentinelScheme + "://" + userinfo + "sentinel" + path, strings.Split(hosts, ",")
}

func failoverOptions(redisUrl string) (*redis.FailoverOptions, error) {
	placeholder, hosts := splitSentinelHosts(redisUrl)
	u, err := url.Parse(placeholder)
	if err != nil {
		return nil, err
	}
	o := &redis.FailoverOptions{}
	if u.User != nil {
		o.SentinelUsername = u.User.Username()
		o.SentinelPassword, _ = u.User.Password()
	}
	for _, hostPort := range hosts {
		host, port, err := net.SplitHostPort(hostPort)
		if err != nil {
			host, port = hostPort, ""
		}
		if host == "" {
			host = "localhost"
		}
		if port == "" {
			port = "6379"
		}
		o.SentinelAddrs = append(o.SentinelAddrs, net.JoinHostPort(host, port))
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	switch len(parts) {
	case 1:
		o.MasterName = parts[0]
	case 2:
		o.MasterName = parts[0]
		db, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("redis: invalid database number: %q", parts[1])
		}
		o.DB = db
	case 0:
		return nil, fmt.Errorf("redis: master name is required")
	default:
		return nil, fmt.Errorf("redis: invalid URL path: %s", u.Path)
	}
	return o, nil
}
