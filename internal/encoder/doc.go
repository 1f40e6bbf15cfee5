// Package encoder provides archive file encoding to various formats.
//
// This package implements encoders for converting emitted suppression
// records into file formats suitable for storage and analytics, with
// configurable compression.
//
// # Supported Formats
//
// The package supports two file formats:
//
//   - Parquet: Columnar format optimized for analytics and Athena queries
//   - Avro: Row-based format with embedded schema
//
// # Encoder Factory
//
// Use Factory to create encoder instances:
//
//	factory := encoder.NewFactory(pkgencoder.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Direct Encoder Creation
//
// Create encoders directly when format is known:
//
//	// Parquet with Snappy compression
//	parquetEnc := encoder.NewParquetEncoder("snappy")
//
//	// Avro with GZIP compression
//	avroEnc, err := encoder.NewAvroEncoder("gzip")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Encoding Records
//
// All encoders implement the pkg/encoder.Encoder interface:
//
//	stats, err := encoder.Encode(filePath, records)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Encoded %d records, %d bytes\n",
//	    stats.RecordCount, stats.SizeBytes)
//
// # Parquet Encoder
//
// Produces columnar Parquet files compatible with AWS Athena:
//
//   - Snappy compression (default, fastest queries)
//   - GZIP, LZ4 and ZSTD compression
//   - Schema covers key, value, event time and changefeed origin fields
//   - Tombstones carry an empty value with the tombstone flag set
//
// # Avro Encoder
//
// Produces row-based Avro OCF files with embedded schema:
//
//   - GZIP compression (default)
//   - Nullable value union, null for tombstones
//
// # File Extensions
//
// Encoders provide appropriate file extensions:
//
//	parquetEnc.FileExtension()  // ".parquet"
//	avroEnc.FileExtension()     // ".avro.gz" (with gzip)
//
// # Schema Management
//
// Schemas are embedded in the encoder implementations:
//
//   - Parquet: Uses parquet-go/parquet package with struct tags
//   - Avro: Uses predefined Avro schema JSON
//
// # Thread Safety
//
// Encoder instances are safe for concurrent use. Factory.CreateEncoder()
// creates independent encoder instances.
package encoder
