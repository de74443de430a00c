package main

import (
	"time"

	"github.com/sells-group/contacts-cli/internal/config"
	"github.com/sells-group/contacts-cli/pkg/exa"
	"github.com/sells-group/contacts-cli/pkg/ipapi"
	"github.com/sells-group/contacts-cli/pkg/mixrank"
)

func newMixrankClient(c config.MixrankConfig) mixrank.Client {
	opts := []mixrank.Option{
		mixrank.WithMaxAge(c.MaxAgeSecs),
		mixrank.WithRateLimit(c.RatePerSec),
		mixrank.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second),
	}
	if c.BaseURL != "" {
		opts = append(opts, mixrank.WithBaseURL(c.BaseURL))
	}
	return mixrank.NewClient(c.Key, opts...)
}

func newExaClient(c config.ExaConfig) exa.Client {
	opts := []exa.Option{
		exa.WithDefaultNumResults(c.NumResults),
		exa.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second),
	}
	if c.BaseURL != "" {
		opts = append(opts, exa.WithBaseURL(c.BaseURL))
	}
	return exa.NewClient(c.Key, opts...)
}

func newIPAPIClient(c config.IPAPIConfig) ipapi.Client {
	opts := []ipapi.Option{
		ipapi.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second),
	}
	if c.BaseURL != "" {
		opts = append(opts, ipapi.WithBaseURL(c.BaseURL))
	}
	return ipapi.NewClient(opts...)
}
