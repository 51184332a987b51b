// Package placeholder resolves ${key}, ${key:default} and #{expression}
// references inside configuration values.
//
// Expressions are deliberately small. The supported forms are:
//
//	#{systemProperties['java.version']}
//	#{systemProperties['java.version.my'] ?: '11.0'}
//	#{systemEnvironment['HOME']}
//	#{'${app.friends}'.split(',')}
//	#{${app.cutline}}            inline map literals pass through unchanged
//
// Resolution tracks the chain of keys being expanded and fails with a
// CircularReferenceError when a key refers back to itself.
package placeholder
