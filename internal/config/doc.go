// Package config provides configuration loading for reactor hosts.
//
// The configuration is stored in reactor.json or reactor.yaml. This package
// handles loading, saving, defaults, environment overrides and validation,
// and converts the result into runtime, logging and middleware settings.
//
// # Configuration File Structure
//
//	{
//	  "runtime": {
//	    "maxTickIterations": 100,
//	    "arityPolicy": "fatal"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "metrics": {
//	    "namespace": "reactor"
//	  },
//	  "tracing": {
//	    "tracerName": "reactor"
//	  },
//	  "devtools": {
//	    "enabled": true,
//	    "addr": "localhost:7070"
//	  }
//	}
//
// The same fields are accepted in YAML.
//
// # Environment
//
// REACTOR_LOG_LEVEL and REACTOR_DEVTOOLS_ADDR override log.level and
// devtools.addr.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rtCfg, _ := cfg.Reactor()
//	rt := reactor.New(reactor.WithConfig(rtCfg), reactor.WithLogger(cfg.NewLogger(os.Stderr)))
package config
