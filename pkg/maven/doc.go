// Package maven generates the repository layout (metadata XML, POM, jar)
// that unmodified Maven and Gradle clients consume to resolve published
// artifacts.
package maven
