package engine

import "math"

// InputState is the set of held driving controls
type InputState struct {
	Accelerate bool `json:"accelerate"`
	Brake      bool `json:"brake"`
	SteerLeft  bool `json:"steer_left"`
	SteerRight bool `json:"steer_right"`
}

// Steer returns -1 for left, +1 for right and 0 when both or neither are held
func (in InputState) Steer() float64 {
	s := 0.0
	if in.SteerLeft {
		s--
	}
	if in.SteerRight {
		s++
	}
	return s
}

// TickResult describes what happened during one physics step
type TickResult struct {
	Moved   bool `json:"moved"`
	OffRoad bool `json:"off_road"`
	Clamped bool `json:"clamped"`
}

// VehicleController owns the vehicle and integrates its motion each frame
type VehicleController struct {
	vehicle  Vehicle
	mode     VehicleMode
	world    *World
	tuning   VehicleTuning
	maxSpeed float64
	reverse  float64
}

// NewVehicleController creates a controller with the vehicle at the world start
func NewVehicleController(world *World, vt VehicleTuning) *VehicleController {
	c := &VehicleController{
		world:    world,
		tuning:   vt,
		maxSpeed: vt.MaxSpeed(),
		reverse:  vt.ReverseSpeed(),
	}
	c.Reset()
	return c
}

// Reset puts the vehicle back at the start, at rest and driving
func (c *VehicleController) Reset() {
	c.vehicle = Vehicle{Width: c.tuning.Width, Length: c.tuning.Length}
	c.mode = Driving
	c.Place(c.world.Start, c.world.StartHeading)
}

// Place moves the vehicle to pos, snapping to the road when pos is off it
func (c *VehicleController) Place(pos Vec2, heading float64) {
	if !c.world.IsWithinRoad(c.footprintAt(pos, heading)) {
		pos = c.world.NearestRoadPoint(pos)
	}
	c.vehicle.Position = pos
	c.vehicle.Heading = wrapAngle(heading)
}

// Vehicle returns a copy of the vehicle
func (c *VehicleController) Vehicle() Vehicle { return c.vehicle }

// Mode returns whether the vehicle is driving or stopped
func (c *VehicleController) Mode() VehicleMode { return c.mode }

// MaxSpeed returns the speed ceiling in world units per second
func (c *VehicleController) MaxSpeed() float64 { return c.maxSpeed }

// SpeedKmh converts the current speed to km/h for display
func (c *VehicleController) SpeedKmh() float64 {
	return c.vehicle.Speed / c.tuning.UnitsPerKmh
}

// Stop halts the vehicle instantly and ignores input until Resume
func (c *VehicleController) Stop() {
	c.mode = Stopped
	c.vehicle.Speed = 0
	c.vehicle.AngularVelocity = 0
}

// Resume returns control to the driver
func (c *VehicleController) Resume() {
	c.mode = Driving
}

// Footprint returns the corners of the vehicle's oriented bounding box
func (c *VehicleController) Footprint() [4]Vec2 {
	return c.footprintAt(c.vehicle.Position, c.vehicle.Heading)
}

func (c *VehicleController) footprintAt(pos Vec2, heading float64) [4]Vec2 {
	return Footprint(pos, heading, c.tuning.Width, c.tuning.Length)
}

// Footprint returns the corners of a width x length box centred on pos and
// rotated so its length runs along heading
func Footprint(pos Vec2, heading, width, length float64) [4]Vec2 {
	fwd := Vec2{math.Cos(heading), math.Sin(heading)}.Scale(length / 2)
	side := Vec2{-math.Sin(heading), math.Cos(heading)}.Scale(width / 2)
	return [4]Vec2{
		pos.Add(fwd).Add(side),
		pos.Add(fwd).Sub(side),
		pos.Sub(fwd).Sub(side),
		pos.Sub(fwd).Add(side),
	}
}

// Tick advances the vehicle by dt seconds. It does nothing while stopped.
func (c *VehicleController) Tick(dt float64, in InputState) TickResult {
	var res TickResult
	if c.mode != Driving || dt <= 0 {
		return res
	}
	v := &c.vehicle
	t := c.tuning

	if in.Accelerate {
		v.Speed = math.Min(v.Speed+t.Acceleration*dt, c.maxSpeed)
	}
	if in.Brake {
		v.Speed = math.Max(v.Speed-t.BrakeDeceleration*dt, -c.reverse)
	}
	if !in.Accelerate && !in.Brake {
		v.Speed *= math.Pow(t.Friction, dt)
		if math.Abs(v.Speed) < speedEpsilon {
			v.Speed = 0
		}
	}

	// Turning rate scales with speed, so reversing steers the other way.
	if steer := in.Steer(); steer != 0 && math.Abs(v.Speed) > t.MinSteerSpeed {
		target := steer * t.TurnRate * v.Speed / c.maxSpeed
		v.AngularVelocity = moveToward(v.AngularVelocity, target, t.SteerResponse*dt)
	} else {
		v.AngularVelocity *= math.Pow(t.SteerDamping, dt)
	}
	heading := wrapAngle(v.Heading + v.AngularVelocity*dt)

	prev, prevHeading := v.Position, v.Heading
	candidate := v.Position.Add(Vec2{math.Cos(heading), math.Sin(heading)}.Scale(v.Speed * dt))
	if c.world.IsWithinRoad(c.footprintAt(candidate, heading)) {
		v.Position, v.Heading = candidate, heading
	} else {
		res.OffRoad = true
		v.Speed *= t.EmergencyBrakeFactor
		v.AngularVelocity *= t.EmergencyBrakeFactor
		snapped := c.world.NearestRoadPoint(candidate)
		if c.world.IsWithinRoad(c.footprintAt(snapped, heading)) {
			v.Position, v.Heading = snapped, heading
		}
	}

	if bounded := c.world.ClampToBounds(v.Position, t.HalfDiagonal()); bounded != v.Position {
		res.Clamped = true
		v.Speed = 0
		if c.world.IsWithinRoad(c.footprintAt(bounded, v.Heading)) {
			v.Position = bounded
		} else {
			v.Position, v.Heading = prev, prevHeading
		}
	}

	v.Speed = clamp(v.Speed, -c.maxSpeed, c.maxSpeed)
	res.Moved = v.Position != prev
	return res
}
