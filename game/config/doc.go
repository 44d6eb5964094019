// Package config loads driving tuning profiles from a directory of JSON files.
//
// A profile only needs the keys it changes; every other value comes from
// engine.DefaultTuning. Any key can be overridden from the environment with
// the DRIVESIM_ prefix, nested keys joined by underscores:
//
//	DRIVESIM_VEHICLE_MAX_SPEED_KMH=45
//	DRIVESIM_SCENARIO_DISPLAY_DELAY=4
//
// Shipped profiles live in configs/:
//   - standard: 60 km/h ceiling, the default
//   - learner: gentle acceleration and longer explanation delay
//   - highway: 80 km/h with stronger brakes
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	tuning, err := manager.LoadConfig("learner")
//
// Profiles that fail engine.ValidateTuning are reported as ErrInvalidConfig
// and left out of ListConfigs.
package config
