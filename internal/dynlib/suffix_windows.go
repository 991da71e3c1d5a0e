package dynlib

// Suffix is the platform shared-library extension.
const Suffix = ".dll"
