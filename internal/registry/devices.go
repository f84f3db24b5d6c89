// Package registry links in the virtual device drivers.
package registry

import (
	_ "github.com/Alia5/macrokey/virtual/joystick" // Register joystick and digital joystick drivers
	_ "github.com/Alia5/macrokey/virtual/keyboard" // Register keyboard driver
	_ "github.com/Alia5/macrokey/virtual/mouse"    // Register mouse driver
)
